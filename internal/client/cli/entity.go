package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/iudanet/outreach/internal/client/app"
	"github.com/iudanet/outreach/internal/client/repository"
	"github.com/iudanet/outreach/internal/models"
)

// entityDef описывает CLI одной сущности
type entityDef[T models.Record] struct {
	repo     func(a *app.App) *repository.Repository[T]
	newRec   func() T
	defaults map[string]string
	t        models.EntityType
	short    string
	columns  []string
}

func (c *Cli) entityCommands() []*cobra.Command {
	return []*cobra.Command{
		entityCommand(c, entityDef[*models.Homeless]{
			t:       models.EntityHomeless,
			short:   "People the volunteers help",
			repo:    func(a *app.App) *repository.Repository[*models.Homeless] { return a.Registry.Homeless },
			newRec:  func() *models.Homeless { return &models.Homeless{} },
			columns: []string{"id", "name", "nickname", "location", "age"},
		}),
		entityCommand(c, entityDef[*models.Volunteer]{
			t:       models.EntityVolunteer,
			short:   "Volunteer profiles",
			repo:    func(a *app.App) *repository.Repository[*models.Volunteer] { return a.Registry.Volunteer },
			newRec:  func() *models.Volunteer { return &models.Volunteer{} },
			columns: []string{"id", "name", "email", "organization"},
		}),
		entityCommand(c, entityDef[*models.Request]{
			t:        models.EntityRequest,
			short:    "Requests for help",
			repo:     func(a *app.App) *repository.Repository[*models.Request] { return a.Registry.Request },
			newRec:   func() *models.Request { return &models.Request{} },
			defaults: map[string]string{"status": string(models.RequestTodo)},
			columns:  []string{"id", "homeless_id", "title", "status"},
		}),
		entityCommand(c, entityDef[*models.Update]{
			t:       models.EntityUpdate,
			short:   "Status updates about a person",
			repo:    func(a *app.App) *repository.Repository[*models.Update] { return a.Registry.Update },
			newRec:  func() *models.Update { return &models.Update{} },
			columns: []string{"id", "homeless_id", "status", "notes"},
		}),
		entityCommand(c, entityDef[*models.Preference]{
			t:       models.EntityPreference,
			short:   "Volunteer favourites",
			repo:    func(a *app.App) *repository.Repository[*models.Preference] { return a.Registry.Preference },
			newRec:  func() *models.Preference { return &models.Preference{} },
			columns: []string{"id", "volunteer_id", "homeless_id", "notify"},
		}),
	}
}

func entityCommand[T models.Record](c *Cli, s entityDef[T]) *cobra.Command {
	cmd := &cobra.Command{
		Use:     string(s.t),
		Short:   s.short,
		GroupID: "records",
	}

	// online: записи сначала проверяют доступность удалённого хранилища
	withRepo := func(ctx context.Context, online bool) (*repository.Repository[T], error) {
		open := c.open
		if online {
			open = c.openOnline
		}
		a, err := open(ctx)
		if err != nil {
			return nil, err
		}
		return s.repo(a), nil
	}

	var addFields []string
	add := &cobra.Command{
		Use:     "add --set key=value ...",
		Short:   fmt.Sprintf("Create a %s record", s.t),
		Example: fmt.Sprintf("  outreach %s add --set name=Ann --set age:=42", s.t),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := withRepo(cmd.Context(), true)
			if err != nil {
				return err
			}

			doc := []byte(`{}`)
			for k, v := range s.defaults {
				doc, _ = sjson.SetBytes(doc, k, v)
			}
			if doc, err = applyFields(doc, addFields); err != nil {
				return err
			}
			if c.cfg.VolunteerID != "" && hasCreator(s.t) && !gjson.GetBytes(doc, "creator_id").Exists() {
				doc, _ = sjson.SetBytes(doc, "creator_id", c.cfg.VolunteerID)
			}

			rec := s.newRec()
			if err := json.Unmarshal(doc, rec); err != nil {
				return fmt.Errorf("invalid %s fields: %w", s.t, err)
			}

			res, err := repo.Add(cmd.Context(), rec)
			if err != nil {
				return err
			}
			c.io.Printf("Added %s %s (%s)\n", s.t, rec.GetID(), res)
			return nil
		},
	}
	add.Flags().StringArrayVar(&addFields, "set", nil, "Field to set: key=value (string) or key:=json")

	var editFields []string
	edit := &cobra.Command{
		Use:   "edit <id> --set key=value ...",
		Short: fmt.Sprintf("Change fields of a %s record", s.t),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(editFields) == 0 {
				return fmt.Errorf("nothing to change, use --set")
			}
			repo, err := withRepo(cmd.Context(), true)
			if err != nil {
				return err
			}

			current, err := repo.GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			doc, err := json.Marshal(current)
			if err != nil {
				return err
			}
			if doc, err = applyFields(doc, editFields); err != nil {
				return err
			}

			rec := s.newRec()
			if err := json.Unmarshal(doc, rec); err != nil {
				return fmt.Errorf("invalid %s fields: %w", s.t, err)
			}
			if rec.GetID() != args[0] {
				return fmt.Errorf("the id of a record cannot be changed")
			}

			res, err := repo.Update(cmd.Context(), rec)
			if err != nil {
				return err
			}
			c.io.Printf("Updated %s %s (%s)\n", s.t, rec.GetID(), res)
			return nil
		},
	}
	edit.Flags().StringArrayVar(&editFields, "set", nil, "Field to set: key=value (string) or key:=json")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: fmt.Sprintf("Delete a %s record and its dependents", s.t),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := withRepo(cmd.Context(), true)
			if err != nil {
				return err
			}
			res, err := repo.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			c.io.Printf("Deleted %s %s (%s)\n", s.t, args[0], res)
			return nil
		},
	}

	get := &cobra.Command{
		Use:   "get <id>",
		Short: fmt.Sprintf("Show a %s record", s.t),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := withRepo(cmd.Context(), false)
			if err != nil {
				return err
			}
			rec, err := repo.GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return err
			}
			c.io.Println(string(out))
			return nil
		},
	}

	var (
		where  []string
		asJSON bool
	)
	list := &cobra.Command{
		Use:     "list",
		Short:   fmt.Sprintf("List %s records", s.t),
		Example: fmt.Sprintf("  outreach %s list --where %s", s.t, exampleWhere(s.columns)),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := withRepo(cmd.Context(), false)
			if err != nil {
				return err
			}
			filter, err := whereFilter(where)
			if err != nil {
				return err
			}
			records, err := repo.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return c.printRecords(records, s.columns, asJSON)
		},
	}
	list.Flags().StringArrayVar(&where, "where", nil, "Filter field=value (repeatable, all must match)")
	list.Flags().BoolVar(&asJSON, "json", false, "Print one JSON document per line")

	watch := &cobra.Command{
		Use:   "watch",
		Short: fmt.Sprintf("Print the %s list on every local change until interrupted", s.t),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := withRepo(cmd.Context(), false)
			if err != nil {
				return err
			}
			for records := range repo.Observe(cmd.Context()) {
				c.io.Printf("--- %s: %d record(s) at %s\n", s.t, len(records), time.Now().Format(time.TimeOnly))
				if err := c.printRecords(records, s.columns, asJSON); err != nil {
					return err
				}
			}
			return nil
		},
	}
	watch.Flags().BoolVar(&asJSON, "json", false, "Print one JSON document per line")

	cmd.AddCommand(add, edit, del, get, list, watch)
	return cmd
}

func exampleWhere(columns []string) string {
	if len(columns) > 1 {
		return columns[1] + "=..."
	}
	return "id=..."
}

// printRecords печатает таблицу выбранных колонок или JSON lines
func (c *Cli) printRecords(records any, columns []string, asJSON bool) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return err
	}
	items := gjson.ParseBytes(raw).Array()

	if asJSON {
		for _, item := range items {
			c.io.Println(item.Raw)
		}
		return nil
	}

	if len(items) == 0 {
		c.io.Println("No records found.")
		return nil
	}

	tw := tabwriter.NewWriter(c.io, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(columns, "\t")))
	for _, item := range items {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = item.Get(col).String()
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
