// Command admin controls a running service. Live-state commands are
// published on the Redis admin channel and applied by the service itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strangerchat/backend/internal/api/handler"
	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const usage = `Usage: admin [-config file] <command> [args]

Commands:
  ban <user_id> <hours> [reason]   ban a participant
  unban <user_id>                  lift a ban
  end <user_id> [reason]           end a participant's chat or search
  broadcast <text>                 announce to every known participant
  status <user_id>                 show the ban mirror for a participant
  token [subject] [hours]          mint an admin API token`

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("config: %v", err)
	}

	if args[0] == "token" {
		mintToken(cfg, args[1:])
		return
	}

	cmd, err := parseCommand(args)
	if err != nil {
		fail("%v\n\n%s", err, usage)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	s := storage.NewStorageService(nil, rdb)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if args[0] == "status" {
		banned, ttl, err := s.IsUserBanned(ctx, cmd.Subject)
		if err != nil {
			fail("status: %v", err)
		}
		if !banned {
			fmt.Printf("User %s is not banned.\n", cmd.Subject)
			return
		}
		fmt.Printf("User %s is banned for another %s.\n", cmd.Subject, ttl.Round(time.Second))
		return
	}

	if err := s.PublishAdminCommand(ctx, cmd); err != nil {
		fail("publish: %v", err)
	}
	fmt.Printf("Sent %s command.\n", cmd.Action)
}

// parseCommand turns command line arguments into an admin bus command.
func parseCommand(args []string) (models.AdminCommand, error) {
	switch args[0] {
	case models.AdminBan:
		if len(args) < 3 {
			return models.AdminCommand{}, fmt.Errorf("ban needs <user_id> <hours>")
		}
		hours, err := strconv.Atoi(args[2])
		if err != nil || hours <= 0 {
			return models.AdminCommand{}, fmt.Errorf("invalid hours %q", args[2])
		}
		return models.AdminCommand{
			Action:  models.AdminBan,
			Subject: args[1],
			Hours:   hours,
			Reason:  strings.Join(args[3:], " "),
		}, nil

	case models.AdminUnban, "status":
		if len(args) != 2 {
			return models.AdminCommand{}, fmt.Errorf("%s needs <user_id>", args[0])
		}
		return models.AdminCommand{Action: args[0], Subject: args[1]}, nil

	case models.AdminEnd:
		if len(args) < 2 {
			return models.AdminCommand{}, fmt.Errorf("end needs <user_id>")
		}
		return models.AdminCommand{
			Action:  models.AdminEnd,
			Subject: args[1],
			Reason:  strings.Join(args[2:], " "),
		}, nil

	case models.AdminBroadcast:
		text := strings.TrimSpace(strings.Join(args[1:], " "))
		if text == "" {
			return models.AdminCommand{}, fmt.Errorf("broadcast needs <text>")
		}
		return models.AdminCommand{Action: models.AdminBroadcast, Text: text}, nil
	}
	return models.AdminCommand{}, fmt.Errorf("unknown command %q", args[0])
}

func mintToken(cfg config.Config, args []string) {
	subject, hours := "admin", 24
	if len(args) > 0 {
		subject = args[0]
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			fail("invalid hours %q", args[1])
		}
		hours = n
	}

	token, err := handler.IssueToken([]byte(cfg.HTTP.JWTSecret), subject, handler.RoleAdmin, time.Duration(hours)*time.Hour)
	if err != nil {
		fail("token: %v", err)
	}
	fmt.Println(token)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
