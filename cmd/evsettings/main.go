package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/evervolv/evsettings/internal/backup"
	"github.com/evervolv/evsettings/internal/config"
	"github.com/evervolv/evsettings/internal/logging"
	"github.com/evervolv/evsettings/internal/vault"
	"github.com/evervolv/evsettings/pkg/hardware"
	"github.com/evervolv/evsettings/pkg/observer"
	"github.com/evervolv/evsettings/pkg/schema"
	"github.com/evervolv/evsettings/pkg/sdk"
	"github.com/evervolv/evsettings/pkg/settings"
)

// Flags shared by every command.
var (
	cfgFile    string
	addr       string
	token      string
	disableTLS bool
	userFlag   int
	passphrase string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "evsettings",
		Short:        "read and write settings of a device",
		SilenceUsage: true,
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file")
	pf.StringVar(&addr, "addr", "", "daemon address (default from config or $"+sdk.EnvAddr+")")
	pf.StringVar(&token, "token", "", "AUTH token")
	pf.BoolVar(&disableTLS, "insecure", false, "connect without TLS")
	pf.IntVarP(&userFlag, "user", "u", 0, "user id")

	cmd.AddCommand(getCmd(), putCmd(), deleteCmd(), listCmd(), validateCmd(), migrateCmd(),
		backupCmd(), restoreCmd(), hwCmd(), watchCmd())
	return cmd
}

// open connects to the daemon, or opens the local data directory when no
// daemon is reachable.
func open() (sdk.Store, error) {
	cfg, err := config.Load(config.Options{ConfigFile: cfgFile})
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.Logging, "evsettings")

	sc := sdk.Config{
		Addr:       cfg.Server.Addr,
		Token:      cfg.Auth.Token,
		DisableTLS: !cfg.Server.TLS,
		DataDir:    cfg.DataDir,
		Resources:  cfg.Resources,
		Logger:     log,
	}
	if env := os.Getenv(sdk.EnvAddr); env != "" {
		sc.Addr = env
	}
	if addr != "" {
		sc.Addr = addr
	}
	if token != "" {
		sc.Token = token
	}
	if disableTLS {
		sc.DisableTLS = true
	}
	return sdk.New(sc)
}

func user() schema.UserID { return schema.UserID(userFlag) }

func printJSON(v any) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(bytes))
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <namespace> <name>",
		Short: "print a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := schema.ParseNamespace(args[0])
			if err != nil {
				return err
			}
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			s := settings.New(store, settings.Options{User: user()})
			v, ok := s.Table(ns).GetString(cmd.Context(), args[1])
			if !ok {
				return &settings.NotFoundError{Namespace: ns, Name: args[1]}
			}
			fmt.Println(v)
			return nil
		},
	}
}

func putCmd() *cobra.Command {
	var validate bool
	cmd := &cobra.Command{
		Use:   "put <namespace> <name> <value>",
		Short: "store a setting",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := schema.ParseNamespace(args[0])
			if err != nil {
				return err
			}
			name, value := args[1], args[2]
			if validate {
				known, ok := settings.Validate(ns, name, value)
				if !known {
					return fmt.Errorf("no validator for %s/%s", ns, name)
				}
				if !ok {
					return fmt.Errorf("invalid value %q for %s/%s", value, ns, name)
				}
			}

			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			s := settings.New(store, settings.Options{User: user()})
			if !s.Table(ns).PutString(cmd.Context(), name, value) {
				return fmt.Errorf("failed to store %s/%s", ns, name)
			}
			fmt.Println("OK")
			return nil
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", false, "reject values the setting's validator refuses")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <namespace> <name>",
		Short: "remove a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := schema.ParseNamespace(args[0])
			if err != nil {
				return err
			}
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), ns, args[1], user()); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <namespace>",
		Short: "print every setting of a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := schema.ParseNamespace(args[0])
			if err != nil {
				return err
			}
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			all, err := store.List(cmd.Context(), ns, user())
			if err != nil {
				return err
			}
			printJSON(all)
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <namespace> <name> <value>",
		Short: "check a value against the setting's validator without storing it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := schema.ParseNamespace(args[0])
			if err != nil {
				return err
			}
			known, ok := settings.Validate(ns, args[1], args[2])
			switch {
			case !known:
				fmt.Println("UNKNOWN")
			case ok:
				fmt.Println("VALID")
			default:
				fmt.Println("INVALID")
				return errors.New("value rejected")
			}
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [namespace [name]]",
		Short: "print setting changes until interrupted",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := observer.All
			if len(args) == 2 {
				ns, err := schema.ParseNamespace(args[0])
				if err != nil {
					return err
				}
				uri = schema.URI(ns, args[1])
			}
			var only *schema.Namespace
			if len(args) == 1 {
				ns, err := schema.ParseNamespace(args[0])
				if err != nil {
					return err
				}
				only = &ns
			}

			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bus, err := sdk.BusFor(ctx, store)
			if err != nil {
				return err
			}
			reg := bus.Register(uri, func(c schema.Change) {
				if only != nil && c.Namespace != *only {
					return
				}
				printJSON(c)
			})
			defer bus.Unregister(reg)

			<-ctx.Done()
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "re-run the schema upgrade of a user's database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(cmd.Context(), user()); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
}

func backupKey() ([]byte, error) {
	if passphrase == "" {
		passphrase = os.Getenv("EVSETTINGS_BACKUP_PASSPHRASE")
	}
	if passphrase == "" {
		return nil, errors.New("a passphrase is required (--passphrase or $EVSETTINGS_BACKUP_PASSPHRASE)")
	}
	return vault.DeriveKey(passphrase), nil
}

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup <file>",
		Short: "export a user's settings to an encrypted file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := backupKey()
			if err != nil {
				return err
			}
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			blob, err := backup.Export(cmd.Context(), store, user(), key)
			if err != nil {
				return err
			}
			return os.WriteFile(args[0], blob, 0o600)
		},
	}
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "encryption passphrase")
	return cmd
}

func restoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "import settings from a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := backupKey()
			if err != nil {
				return err
			}
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := backup.Import(cmd.Context(), store, blob, key, user())
			fmt.Printf("restored %d, skipped %d\n", report.Restored, report.Skipped)
			return err
		},
	}
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "encryption passphrase")
	return cmd
}

func hwCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hw",
		Short: "inspect and toggle hardware features",
	}

	manager := func() (*hardware.Manager, func() error, error) {
		store, err := open()
		if err != nil {
			return nil, nil, err
		}
		remote, ok := store.(hardware.Remote)
		if !ok {
			_ = store.Close()
			return nil, nil, errors.New("hardware features need a running daemon")
		}
		return hardware.NewManager(remote, zerolog.Nop()), store.Close, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "print supported features and their state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeFn, err := manager()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			for _, f := range hardware.Features {
				if !m.IsSupported(ctx, f) {
					continue
				}
				state := "-"
				if f.IsBoolean() {
					on, _ := m.Get(ctx, f)
					state = strconv.FormatBool(on)
				}
				fmt.Printf("%s\t%s\n", f, state)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <FEATURE_NAME> <true|false>",
		Short: "enable or disable a feature",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, ok := hardware.ParseFeature(args[0])
			if !ok {
				return fmt.Errorf("unknown feature %q", args[0])
			}
			enable, err := strconv.ParseBool(args[1])
			if err != nil {
				return err
			}
			m, closeFn, err := manager()
			if err != nil {
				return err
			}
			defer closeFn()

			applied, err := m.Set(cmd.Context(), f, enable)
			if err != nil {
				return err
			}
			if !applied {
				return fmt.Errorf("%s was not changed", f)
			}
			fmt.Println("OK")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "vibrator [level]",
		Short: "print the vibrator intensity, or set it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeFn, err := manager()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			if !m.IsSupported(ctx, hardware.Vibrator) {
				return fmt.Errorf("%s is not supported", hardware.Vibrator)
			}
			if len(args) == 0 {
				printJSON(m.VibratorIntensity(ctx))
				return nil
			}
			level, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			if !m.SetVibratorIntensity(ctx, level) {
				return fmt.Errorf("vibrator intensity was not changed")
			}
			fmt.Println("OK")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "gestures",
		Short: "print the touchscreen gestures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeFn, err := manager()
			if err != nil {
				return err
			}
			defer closeFn()

			for _, g := range m.TouchscreenGestures(cmd.Context()) {
				fmt.Printf("%d\t%s\t%d\n", g.ID, g.Name, g.Keycode)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "gesture <id> <true|false>",
		Short: "enable or disable a touchscreen gesture",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			enable, err := strconv.ParseBool(args[1])
			if err != nil {
				return err
			}
			m, closeFn, err := manager()
			if err != nil {
				return err
			}
			defer closeFn()

			if !m.SetTouchscreenGestureEnabled(cmd.Context(), hardware.Gesture{ID: id}, enable) {
				return fmt.Errorf("gesture %d was not changed", id)
			}
			fmt.Println("OK")
			return nil
		},
	})
	return cmd
}
