// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// ゲートウェイがプロフィールサービスなどの内部サービスを呼び出す際に使用する。
// コンテキストに設定された呼び出し元の識別情報は X-Client-* ヘッダーとして伝播する。
package httpclient
