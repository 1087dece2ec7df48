package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	tg "github.com/go-telegram/bot"

	"github.com/metasolana/metasolanabot/internal/config"
	"github.com/metasolana/metasolanabot/internal/health"
	"github.com/metasolana/metasolanabot/internal/price"
	"github.com/metasolana/metasolanabot/internal/solana"
	"github.com/metasolana/metasolanabot/internal/store"
	"github.com/metasolana/metasolanabot/internal/sweep"
	"github.com/metasolana/metasolanabot/internal/telegram"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lmsgprefix)
	log.SetPrefix("metasolanabot ")

	cfg := config.MustLoad()
	log.Println(cfg.RedactedSummary())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st := store.NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey)
	chain := solana.NewClient(cfg.SolanaRPCURL, cfg.Commitment)
	quotes := price.NewClient()

	bot, err := tg.New(cfg.TelegramBotToken)
	if err != nil {
		log.Fatalf("telegram init: %v", err)
	}

	th := telegram.New(bot, st, chain, quotes)
	checker := price.NewChecker(st, quotes, th.AlertTriggered)

	srv := health.NewServer(cfg.Port, st, chain)
	go srv.Run(ctx)

	sw := sweep.New(st, checker, cfg.SweepInterval)
	go sw.Run(ctx)

	log.Println("started; awaiting Telegram updates")
	th.Run(ctx)
	log.Println("shutdown complete")
}
