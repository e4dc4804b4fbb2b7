package main

import (
	"log"

	tool "github.com/sandeepkv93/fundraising-accounts-service/internal/tools/accountsctl"
)

func main() {
	if err := tool.NewRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
