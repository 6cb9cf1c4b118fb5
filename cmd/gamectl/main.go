// gamectl is the back-office CLI for the game server: agent registration,
// key revocation and ban management, talking straight to the shared store
// rather than through the HTTP admin surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pokevote/gameserver/internal/ban"
	"github.com/pokevote/gameserver/internal/config"
	"github.com/pokevote/gameserver/internal/credentials"
	"github.com/pokevote/gameserver/internal/logging"
	"github.com/pokevote/gameserver/internal/store"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: gamectl [-store URL] <command> [args]

commands:
  register <agent-id> [plan]          register an agent (plan: free|standard|premium, default free)
  revoke <raw-api-key>                revoke an API key
  ban <kind> <identifier> <reason>    create a ban (kind: agent|ip|cidr|user-agent)
  unban <kind> <identifier>           remove a ban
  bans                                list active bans

flags:
`)
	flag.PrintDefaults()
}

var (
	storeURL = flag.String("store", "", "Store URL (defaults to STORE_URL or redis://localhost:6379/0)")
	banType  = flag.String("type", "soft", "Ban type for the ban command (soft|hard)")
	banTTL   = flag.Duration("ttl", 0, "Ban duration for the ban command (0 = no expiry)")
	bannedBy = flag.String("by", "gamectl", "Actor recorded on the ban")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	url := *storeURL
	if url == "" {
		url = os.Getenv("STORE_URL")
	}
	if url == "" {
		url = config.NewDefaultConfig().Store.URL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := logging.NewFromConfig(logging.Config{Level: "warn", Outputs: []string{"console"}})

	client, err := store.New(ctx, url, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gamectl: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := run(ctx, client, logger, args); err != nil {
		fmt.Fprintf(os.Stderr, "gamectl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, client *store.Client, logger *logging.Logger, args []string) error {
	creds := credentials.New(client)
	bans := ban.New(client, logger)

	switch args[0] {
	case "register":
		if len(args) < 2 {
			return fmt.Errorf("register: agent-id required")
		}
		plan := credentials.PlanFree
		if len(args) >= 3 {
			plan = credentials.Plan(args[2])
		}
		rps := planRPS(plan)
		res, err := creds.RegisterAgent(ctx, args[1], plan, rps)
		if err != nil {
			return err
		}
		fmt.Printf("agent %s registered (plan %s)\napi key: %s\n", res.AgentID, res.Plan, res.APIKey)
		return nil

	case "revoke":
		if len(args) < 2 {
			return fmt.Errorf("revoke: raw API key required")
		}
		if err := creds.Revoke(ctx, args[1]); err != nil {
			return err
		}
		fmt.Println("revoked")
		return nil

	case "ban":
		if len(args) < 4 {
			return fmt.Errorf("ban: kind, identifier and reason required")
		}
		return createBan(ctx, bans, ban.Kind(args[1]), args[2], args[3])

	case "unban":
		if len(args) < 3 {
			return fmt.Errorf("unban: kind and identifier required")
		}
		if err := bans.Unban(ctx, ban.Kind(args[1]), args[2]); err != nil {
			return err
		}
		fmt.Println("unbanned")
		return nil

	case "bans":
		records, err := bans.List(ctx)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("no active bans")
			return nil
		}
		for _, r := range records {
			expiry := "never"
			if r.ExpiresAt != nil {
				expiry = r.ExpiresAt.Format(time.RFC3339)
			}
			fmt.Printf("%-10s %-8s %-24s by=%s expires=%s reason=%s\n",
				r.Kind, r.Type, r.Identifier, r.BannedBy, expiry, r.Reason)
		}
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func createBan(ctx context.Context, bans *ban.Subsystem, kind ban.Kind, identifier, reason string) error {
	t := ban.Type(*banType)
	if t != ban.TypeSoft && t != ban.TypeHard {
		return fmt.Errorf("ban: type must be soft or hard")
	}

	var expiresAt *time.Time
	if *banTTL > 0 {
		exp := time.Now().Add(*banTTL)
		expiresAt = &exp
	}

	var err error
	switch kind {
	case ban.KindAgent:
		err = bans.BanAgent(ctx, identifier, t, reason, *bannedBy, expiresAt)
	case ban.KindIP:
		err = bans.BanIP(ctx, identifier, t, reason, *bannedBy, expiresAt)
	case ban.KindCIDR:
		err = bans.BanCIDR(ctx, identifier, t, reason, *bannedBy, expiresAt)
	case ban.KindUserAgent:
		err = bans.BanUserAgent(ctx, identifier, t, reason, *bannedBy, expiresAt)
	default:
		return fmt.Errorf("ban: unknown kind %q", kind)
	}
	if err != nil {
		return err
	}
	fmt.Println("banned")
	return nil
}

// planRPS mirrors the per-plan rates used by the rate limiter, recorded on
// the credential as its rpsLimit.
func planRPS(plan credentials.Plan) int {
	switch plan {
	case credentials.PlanPremium:
		return 100
	case credentials.PlanStandard:
		return 20
	default:
		return 5
	}
}
