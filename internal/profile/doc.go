// Package profile はウォレットとプロフィールの対応を解決し、ウォレットの紐付けを行う。
//
// Providerはログイン時にJWTへ埋め込むプロフィールIDと紐付くウォレット一覧を返す。
// Binderは検証済みの新しいウォレットをプロフィールへ追加する。
// 実装は単一ウォレット（外部ストア無し）、HTTPサービス、ローカルSQLiteの3種類。
package profile
