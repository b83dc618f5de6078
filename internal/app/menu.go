package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/menuman/internal/config"
	"github.com/hitoshi/menuman/internal/menuview"
	"github.com/hitoshi/menuman/internal/model"
	"github.com/hitoshi/menuman/internal/pipeline"
)

// errRestaurantRequired はレストランが指定されず、既定のレストランも未設定の場合のエラー。
var errRestaurantRequired = errors.New("restaurant id is required (menu [-lang en|fi] [-json] <restaurant-id>)")

// runMenu は指定レストランの当日メニューをoutに出力する。
// レストランを省略した場合は既定の都市の既定レストランを使う。
func runMenu(cfg *config.Config, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("menu", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	lang := fs.String("lang", string(cfg.DefaultLanguage), "display language (en|fi)")
	asJSON := fs.Bool("json", false, "print the menu as JSON")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("invalid menu arguments: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.UpstreamTimeout+5*time.Second)
	defer cancel()

	c, err := newComponents(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer c.Close()

	restaurantID := fs.Arg(0)
	if restaurantID == "" {
		state := c.prefs.Selector.State()
		id, ok := c.prefs.Selector.DefaultRestaurant(state.DefaultCity)
		if !ok {
			return errRestaurantRequired
		}
		restaurantID = id
	}

	view, err := c.menus.Today(ctx, restaurantID, model.ParseLanguage(*lang, cfg.DefaultLanguage))
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	return writeMenuText(out, view)
}

// writeMenuText はViewを端末向けのテキストとして出力する。
func writeMenuText(out io.Writer, v *menuview.View) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s (%s)", v.Restaurant.Name, v.Restaurant.City)
	if v.DisplayDate != "" {
		fmt.Fprintf(&b, "  %s", v.DisplayDate)
	}
	b.WriteString("\n")
	if v.Stale {
		b.WriteString("(cached menu, upstream unavailable)\n")
	}

	switch v.Status {
	case menuview.StatusUnavailable:
		b.WriteString("Menu is unavailable right now.\n")
	case string(pipeline.StatusNoMenu):
		b.WriteString("No menu today.\n")
	case string(pipeline.StatusAllHidden):
		fmt.Fprintf(&b, "All %d courses are hidden by the meal type filter.\n", v.HiddenCount)
	default:
		for _, g := range v.Groups {
			fmt.Fprintf(&b, "\n%s\n", g.Label)
			for _, course := range g.Courses {
				writeCourseLine(&b, course)
			}
		}
		if v.HiddenCount > 0 {
			fmt.Fprintf(&b, "\n(%d hidden)\n", v.HiddenCount)
		}
	}

	_, err := io.WriteString(out, b.String())
	return err
}

func writeCourseLine(b *strings.Builder, c pipeline.DecoratedCourse) {
	marker := "-"
	if c.IsFavorite {
		marker = "*"
	}
	fmt.Fprintf(b, "  %s %s", marker, c.Name)
	if len(c.DietCodes) > 0 {
		fmt.Fprintf(b, " [%s]", strings.Join(c.DietCodes, ", "))
	}
	if c.IsBlacklisted {
		b.WriteString(" (blacklisted)")
	}
	b.WriteString("\n")
	if c.Allergens != "" {
		fmt.Fprintf(b, "      allergens: %s\n", c.Allergens)
	}
}
