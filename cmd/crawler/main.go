package main

import (
	"github.com/abdur-rab-khan/aladdin-bot/cmd"
	"github.com/abdur-rab-khan/aladdin-bot/internal/shared"
)

func main() {
	shared.InitLogger("crawler")

	cmd.ExecuteCrawler()
}
