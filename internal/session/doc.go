// Package session はログイン用nonceとリフレッシュトークンを共有ストアに保存する。
//
// ゲートウェイは複数レプリカで動くため、同じキーに対する読み取りと更新は
// 必ずRedisの1コマンド（GETDEL）または1スクリプトで原子的に行う。
// プロセス内のロックには頼らない。
package session
