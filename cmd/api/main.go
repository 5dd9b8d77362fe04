// Package main はアカウント API サーバーのエントリーポイントです。
package main

import (
	"os"
)

const (
	serviceName = "account-api"
	version     = "0.1.0"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
