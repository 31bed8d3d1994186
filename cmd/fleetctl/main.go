// fleetctl: админка хранилища ботов без запуска флота.
//
//	fleetctl list
//	fleetctl export > bots.yaml
//	fleetctl apply bots.yaml
//	fleetctl enable|disable|toggle <id>
//	fleetctl trades [bot_id] [--limit N]
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"algo_fleet/internal/modules/config"
	"algo_fleet/internal/modules/storage"
	"algo_fleet/internal/store"
)

func main() {
	flags := pflag.NewFlagSet("fleetctl", pflag.ExitOnError)
	flags.String("config", "", "path to config yaml (default configs/$CONFIG_FILE)")
	flags.Int("limit", store.DefaultTradesLimit, "trades page size")
	_ = flags.Parse(os.Args[1:])

	opts := viper.New()
	if err := opts.BindPFlags(flags); err != nil {
		fatal(err)
	}

	args := flags.Args()
	if len(args) == 0 {
		fatal(errors.New("usage: fleetctl list|export|apply|enable|disable|toggle|trades"))
	}

	var (
		cfg *config.Config
		err error
	)
	if path := opts.GetString("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.NewConfig()
	}
	if err != nil {
		fatal(err)
	}
	// сид применяет только сервис
	cfg.Storage.SeedFile = ""

	ctx := context.Background()
	st, err := storage.Open(ctx, cfg, zap.NewNop())
	if err != nil {
		fatal(err)
	}

	err = run(ctx, st, args, opts.GetInt("limit"))
	_ = st.Close()
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "fleetctl:", err)
	os.Exit(1)
}

func run(ctx context.Context, st store.Store, args []string, limit int) error {
	switch cmd := args[0]; cmd {
	case "list":
		return listBots(ctx, st)
	case "export":
		bots, err := st.ListBots(ctx)
		if err != nil {
			return err
		}
		bs, err := store.MarshalSeed(bots)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(bs)
		return err
	case "apply":
		if len(args) < 2 {
			return errors.New("apply: file is required")
		}
		return applyFile(ctx, st, args[1])
	case "enable", "disable", "toggle":
		if len(args) < 2 {
			return errors.Errorf("%s: bot id is required", cmd)
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return errors.Wrap(err, "bot id")
		}
		return setActive(ctx, st, cmd, id)
	case "trades":
		var botID int64
		if len(args) > 1 {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return errors.Wrap(err, "bot id")
			}
			botID = id
		}
		return listTrades(ctx, st, botID, limit)
	default:
		return errors.Errorf("unknown command %q", cmd)
	}
}

func listBots(ctx context.Context, st store.Store) error {
	bots, err := st.ListBots(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYMBOL\tSTRATEGY\tLEVERAGE\tACTIVE")
	for _, b := range bots {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%v\n", b.ID, b.Symbol, b.StrategyName, b.EffectiveLeverage(), b.IsActive)
	}
	return w.Flush()
}

// applyFile перезаписывает определения из файла, в отличие от сида на старте.
func applyFile(ctx context.Context, st store.Store, path string) error {
	bots, err := store.LoadSeed(path)
	if err != nil {
		return err
	}
	for i := range bots {
		if err := st.UpsertBot(ctx, &bots[i]); err != nil {
			return errors.Wrapf(err, "apply bot %d", bots[i].ID)
		}
	}
	fmt.Printf("%s: %d bots applied\n", path, len(bots))
	return nil
}

func setActive(ctx context.Context, st store.Store, cmd string, id int64) error {
	var (
		active bool
		err    error
	)
	switch cmd {
	case "toggle":
		active, err = st.ToggleActive(ctx, id)
	default:
		active = cmd == "enable"
		err = st.SetActive(ctx, id, active)
	}
	if err != nil {
		return err
	}
	fmt.Printf("bot %d is_active=%v\n", id, active)
	return nil
}

func listTrades(ctx context.Context, st store.Store, botID int64, limit int) error {
	trades, err := st.ListTrades(ctx, botID, store.ClampLimit(limit))
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tBOT\tSYMBOL\tSIDE\tENTRY\tEXIT\tPNL%\tREASON\tCLOSED")
	for _, t := range trades {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%.6f\t%.6f\t%.2f\t%s\t%s\n",
			t.ID, t.BotID, t.Symbol, t.Side, t.EntryPrice, t.ExitPrice, t.PnLPct*100, t.Reason,
			t.ClosedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
