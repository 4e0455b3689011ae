package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"runtime"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/NKRTECH/unified-inbox/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("unibox doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Database:")
	if cfg.Database.PostgresDSN != "" {
		fmt.Printf("    %-12s postgres\n", "Backend:")
		db, dbErr := sql.Open("pgx", cfg.Database.PostgresDSN)
		if dbErr != nil {
			fmt.Printf("    %-12s CONNECT FAILED (%s)\n", "Status:", dbErr)
		} else if pingErr := db.Ping(); pingErr != nil {
			fmt.Printf("    %-12s CONNECT FAILED (%s)\n", "Status:", pingErr)
			db.Close()
		} else {
			fmt.Printf("    %-12s connected\n", "Status:")
			db.Close()
		}
	} else {
		fmt.Printf("    %-12s sqlite (%s)\n", "Backend:", cfg.Database.SQLitePath)
	}

	fmt.Println()
	fmt.Println("  Carrier:")
	fmt.Printf("    %-16s %s\n", "Base URL:", cfg.Carrier.BaseURL)
	fmt.Printf("    %-16s %s\n", "Account SID:", presence(cfg.Carrier.AccountSID, "set"))
	fmt.Printf("    %-16s %s\n", "Auth token:", presence(cfg.Carrier.AuthToken, "set (UNIBOX_CARRIER_AUTH_TOKEN)"))
	fmt.Printf("    %-16s %s\n", "Webhook secret:", presence(cfg.Carrier.WebhookSecret, "set (UNIBOX_WEBHOOK_SECRET)"))

	fmt.Println()
	fmt.Println("  Channels:")
	printChannel("sms", cfg.Channels.SMS.From != "")
	printChannel("whatsapp", cfg.Channels.WhatsApp.From != "")
	printChannel("messenger", cfg.Channels.Messenger.From != "")
	printChannel("email", cfg.Channels.Email.From != "")
	printChannel("chat", cfg.Channels.Chat.Enabled)

	fmt.Println()
	fmt.Println("  Events:")
	if cfg.Events.AMQPURL != "" {
		fmt.Printf("    %-12s %s (exchange %q)\n", "AMQP:", "configured", cfg.Events.Exchange)
	} else {
		fmt.Printf("    %-12s websocket hub only\n", "AMQP:")
	}

	if cfg.Server.Token == "" {
		fmt.Println()
		fmt.Println("  WARNING: UNIBOX_API_TOKEN is not set; the management API is unauthenticated")
	}
	if cfg.Carrier.WebhookSecret == "" {
		fmt.Println("  WARNING: UNIBOX_WEBHOOK_SECRET is not set; all webhook signatures will be rejected")
	}
}

func presence(v, label string) string {
	if v == "" {
		return "NOT SET"
	}
	return label
}

func printChannel(name string, on bool) {
	state := "disabled"
	if on {
		state = "enabled"
	}
	fmt.Printf("    %-12s %s\n", name+":", state)
}
