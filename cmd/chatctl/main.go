package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/JackBerck/guyub-rukun-sub001/internal/client"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const configName = ".chatctl"

type command struct {
	usage string
	run   func(ctx context.Context, c *client.Client, args []string) error
}

var commands = map[string]command{
	"login":  {"login --email <email> --password <password>", runLogin},
	"logout": {"logout", runLogout},
	"me":     {"me", runMe},
	"send":   {"send --to <user id> --message <text>", runSend},
	"unread": {"unread", runUnread},
	"chats":  {"chats", runChats},
	"open":   {"open --with <user id> [--limit n] [--before id] [--after id]", runOpen},
	"read":   {"read --with <user id>", runRead},
	"watch":  {"watch", runWatch},
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: chatctl [--server url] <command> [flags]")
	fmt.Fprintln(os.Stderr, "\nCommands:")
	for _, name := range []string{"login", "logout", "me", "send", "unread", "chats", "open", "read", "watch"} {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", name, commands[name].usage)
	}
}

func loadConfig() error {
	// .env is optional, like the server
	_ = godotenv.Load()

	viper.SetEnvPrefix("CHATCTL")
	viper.AutomaticEnv()
	viper.SetDefault("server", "http://localhost:8080")

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(home)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// saveConfig persists the session token next to the server URL
func saveConfig() error {
	path := viper.ConfigFileUsed()
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(home, configName+".yaml")
	}
	return viper.WriteConfigAs(path)
}

func main() {
	if err := loadConfig(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	global := pflag.NewFlagSet("chatctl", pflag.ExitOnError)
	global.String("server", viper.GetString("server"), "chat server base URL")
	global.SetInterspersed(false)
	global.Usage = usage
	if err := global.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if err := viper.BindPFlag("server", global.Lookup("server")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	args := global.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}

	c := client.New(viper.GetString("server"))
	if token := viper.GetString("token"); token != "" {
		c.SetToken(token)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, c, args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
