// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// Bearerトークンの取り出し、エラーレスポンスの書き出し、パニックリカバリ、
// CORS設定を含む。
package middleware
