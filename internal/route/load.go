package route

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig はYAMLファイルからルート宣言を読み込む。
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("ルート設定の読み込みに失敗: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig はYAMLをルート宣言に変換する。未知のフィールドはエラーとする。
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("ルート設定の解析に失敗: %w", err)
	}
	return cfg, nil
}
