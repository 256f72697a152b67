package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ummahtools/eventroster/internal/config"
	"github.com/ummahtools/eventroster/pkg/clients/smsclient"
	"github.com/ummahtools/eventroster/pkg/core/permissions"
	"github.com/ummahtools/eventroster/pkg/core/roster"
	"github.com/ummahtools/eventroster/pkg/core/services"
	"github.com/ummahtools/eventroster/pkg/postgres"
	"github.com/ummahtools/eventroster/pkg/utils/logging"
)

// App holds the application dependencies
type App struct {
	cfg      *config.Config
	database *postgres.DB
	oracle   *permissions.Oracle
	notifier services.Notifier
	logger   *zap.Logger
	ctx      context.Context
}

var (
	env    string
	userID string
	app    *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "eventroster",
		Short: "EventRoster CLI - Manage events and volunteer signups",
		Long:  `A CLI tool for managing events, gender-segmented volunteer slots, reservations, and no-show cleanup.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				if app.logger != nil {
					app.logger.Sync()
				}
				if app.database != nil {
					app.database.Close()
				}
			}
		},
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "Acting organizer ID (required for management commands)")

	// Add all commands
	rootCmd.AddCommand(createEventCmd())
	rootCmd.AddCommand(addRoleCmd())
	rootCmd.AddCommand(publishCmd())
	rootCmd.AddCommand(unpublishCmd())
	rootCmd.AddCommand(reserveCmd())
	rootCmd.AddCommand(cancelCmd())
	rootCmd.AddCommand(checkInCmd())
	rootCmd.AddCommand(checkOutCmd())
	rootCmd.AddCommand(deleteEventCmd())
	rootCmd.AddCommand(restoreEventCmd())
	rootCmd.AddCommand(purgeEventCmd())
	rootCmd.AddCommand(sweepDeletedCmd())
	rootCmd.AddCommand(runCleanupCmd())
	rootCmd.AddCommand(shareEventCmd())
	rootCmd.AddCommand(listEventsCmd())
	rootCmd.AddCommand(viewEventCmd())
	rootCmd.AddCommand(listContactsCmd())
	rootCmd.AddCommand(viewLogCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, database, and the SMS gateway client
func initApp() error {
	var err error
	app = &App{
		ctx: context.Background(),
	}

	// Initialize logger
	app.logger, err = logging.InitLogger(env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.logger.Info("Starting application", zap.String("environment", env))

	// Load configuration
	app.logger.Info("Loading configuration")
	app.cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.logger.Debug("Configuration loaded successfully")

	// Connect to the database and apply pending migrations
	app.logger.Info("Connecting to database")
	app.database, err = postgres.NewDB(app.ctx, app.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := app.database.RunMigrations(app.ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	app.logger.Debug("Database ready")

	app.oracle = permissions.NewOracle(app.database)

	// SMS gateway is optional; without one reservations still commit silently
	if app.cfg.SMSGatewayURL != "" {
		app.notifier = smsclient.NewClient(app.cfg.SMSGatewayURL, app.cfg.SMSAPIKey, app.cfg.SMSSender)
		app.logger.Info("SMS gateway configured", zap.String("sender", app.cfg.SMSSender))
	} else {
		app.logger.Info("No SMS gateway configured, confirmations disabled")
	}

	return nil
}

// requireUser guards commands that act on behalf of an organizer
func requireUser() error {
	if userID == "" {
		return fmt.Errorf("this command requires --user")
	}
	return nil
}

// parseTime accepts RFC3339 or a bare "2006-01-02 15:04" local time
func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("time must be RFC3339 or \"YYYY-MM-DD HH:MM\": %w", err)
	}
	return t, nil
}

// Command definitions

func createEventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "createEvent <title> <start> <end>",
		Short: "Create a new draft event",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			start, err := parseTime(args[1])
			if err != nil {
				return err
			}
			end, err := parseTime(args[2])
			if err != nil {
				return err
			}

			location, _ := cmd.Flags().GetString("location")
			isPublic, _ := cmd.Flags().GetBool("public")

			event, err := services.CreateEvent(app.ctx, app.database, app.logger, services.CreateEventRequest{
				Title:    args[0],
				Location: location,
				Start:    start,
				End:      end,
				IsPublic: isPublic,
				OwnerID:  userID,
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Event created as draft\n\n")
			fmt.Printf("Event ID: %s\n", event.ID)
			fmt.Printf("Title:    %s\n", event.Title)
			fmt.Printf("Starts:   %s\n", event.Start.Local().Format("2006-01-02 15:04"))
			fmt.Printf("Ends:     %s\n\n", event.End.Local().Format("2006-01-02 15:04"))
			fmt.Println("Add roles with addRole, then publish to open signups.")

			return nil
		},
	}

	cmd.Flags().String("location", "", "Venue or address")
	cmd.Flags().Bool("public", true, "List the event publicly once published")

	return cmd
}

func addRoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addRole <event_id> <name>",
		Short: "Add a volunteer role with gender-segmented slots to an event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			brothers, _ := cmd.Flags().GetInt("brothers")
			sisters, _ := cmd.Flags().GetInt("sisters")
			flexible, _ := cmd.Flags().GetInt("flexible")
			shiftStartStr, _ := cmd.Flags().GetString("shift-start")
			shiftEndStr, _ := cmd.Flags().GetString("shift-end")

			shiftStart, err := parseTime(shiftStartStr)
			if err != nil {
				return fmt.Errorf("invalid --shift-start: %w", err)
			}
			shiftEnd, err := parseTime(shiftEndStr)
			if err != nil {
				return fmt.Errorf("invalid --shift-end: %w", err)
			}

			role, err := services.AddRole(app.ctx, app.database, app.oracle, app.logger, userID, services.AddRoleRequest{
				EventID:       args[0],
				Name:          args[1],
				SlotsBrother:  brothers,
				SlotsSister:   sisters,
				SlotsFlexible: flexible,
				ShiftStart:    shiftStart,
				ShiftEnd:      shiftEnd,
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Role added\n\n")
			fmt.Printf("Role ID:  %s\n", role.ID)
			fmt.Printf("Name:     %s\n", role.Name)
			fmt.Printf("Slots:    %d brothers, %d sisters, %d flexible\n\n",
				role.SlotsBrother, role.SlotsSister, role.SlotsFlexible)

			return nil
		},
	}

	cmd.Flags().Int("brothers", 0, "Slots reserved for brothers")
	cmd.Flags().Int("sisters", 0, "Slots reserved for sisters")
	cmd.Flags().Int("flexible", 0, "Ungendered slots")
	cmd.Flags().String("shift-start", "", "Shift start time (required)")
	cmd.Flags().String("shift-end", "", "Shift end time (required)")
	cmd.MarkFlagRequired("shift-start")
	cmd.MarkFlagRequired("shift-end")

	return cmd
}

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <event_id>",
		Short: "Publish a draft event, opening it for signups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			if err := services.Publish(app.ctx, app.database, app.oracle, app.logger, userID, args[0]); err != nil {
				return err
			}

			fmt.Printf("\n✓ Event %s published\n", args[0])
			return nil
		},
	}
}

func unpublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpublish <event_id>",
		Short: "Return a published event to draft, closing signups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			if err := services.Unpublish(app.ctx, app.database, app.oracle, app.logger, userID, args[0]); err != nil {
				return err
			}

			fmt.Printf("\n✓ Event %s returned to draft\n", args[0])
			return nil
		},
	}
}

func reserveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reserve <event_id> <role_id> <name> <phone> <brother|sister>",
		Short: "Reserve a slot for a volunteer",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, _ := cmd.Flags().GetString("notes")
			flexible, _ := cmd.Flags().GetBool("flexible")

			result, err := services.Reserve(app.ctx, app.database, app.notifier, app.logger, services.ReserveRequest{
				EventID:  args[0],
				RoleID:   args[1],
				Name:     args[2],
				Phone:    args[3],
				Gender:   args[4],
				Notes:    notes,
				Flexible: flexible,
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Reservation confirmed\n\n")
			fmt.Printf("Volunteer ID: %s\n", result.Volunteer.ID)
			fmt.Printf("Slot type:    %s\n", result.Volunteer.SlotType)
			fmt.Printf("Remaining:    %d brothers, %d sisters, %d flexible\n\n",
				result.Remaining.Brother, result.Remaining.Sister, result.Remaining.Flexible)

			if result.NotifyErr != nil {
				fmt.Printf("⚠️  Confirmation SMS failed: %v\n", result.NotifyErr)
			}

			return nil
		},
	}

	cmd.Flags().String("notes", "", "Free-text notes for the organizer")
	cmd.Flags().Bool("flexible", false, "Take a flexible slot instead of a gendered one")

	return cmd
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <volunteer_id>",
		Short: "Cancel a reservation, freeing its slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			if err := services.Cancel(app.ctx, app.database, app.oracle, app.logger, userID, args[0]); err != nil {
				return err
			}

			fmt.Printf("\n✓ Reservation %s cancelled\n", args[0])
			return nil
		},
	}
}

func checkInCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkIn <volunteer_id>",
		Short: "Record that a volunteer arrived",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			if err := services.CheckIn(app.ctx, app.database, app.oracle, app.logger, userID, args[0], time.Now().UTC()); err != nil {
				return err
			}

			fmt.Printf("\n✓ Volunteer %s checked in\n", args[0])
			return nil
		},
	}
}

func checkOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkOut <volunteer_id>",
		Short: "Record that a volunteer left",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			if err := services.CheckOut(app.ctx, app.database, app.oracle, app.logger, userID, args[0], time.Now().UTC()); err != nil {
				return err
			}

			fmt.Printf("\n✓ Volunteer %s checked out\n", args[0])
			return nil
		},
	}
}

func deleteEventCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <event_id>",
		Short: "Soft-delete an event (recoverable for the retention window)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			if err := services.SoftDelete(app.ctx, app.database, app.oracle, app.logger, userID, args[0], time.Now().UTC()); err != nil {
				return err
			}

			fmt.Printf("\n✓ Event %s deleted\n", args[0])
			fmt.Printf("Recoverable with restore for %d days.\n", app.cfg.SoftDeleteRetentionDays)
			return nil
		},
	}
}

func restoreEventCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <event_id>",
		Short: "Restore a soft-deleted event to its prior status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			err := services.Restore(app.ctx, app.database, app.oracle, app.logger,
				userID, args[0], time.Now().UTC(), app.cfg.SoftDeleteRetention())
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Event %s restored\n", args[0])
			return nil
		},
	}
}

func purgeEventCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <event_id>",
		Short: "Permanently erase a soft-deleted event and its signups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			if err := services.Purge(app.ctx, app.database, app.oracle, app.logger, userID, args[0]); err != nil {
				return err
			}

			fmt.Printf("\n✓ Event %s purged\n", args[0])
			fmt.Println("Signup details survive only in the activity log.")
			return nil
		},
	}
}

func sweepDeletedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweepDeleted",
		Short: "Purge soft-deleted events past the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := services.SweepExpired(app.ctx, app.database, app.logger,
				time.Now().UTC(), app.cfg.SoftDeleteRetention())
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Println("\nNo expired events to purge.")
				return nil
			}

			fmt.Printf("\n✓ Sweep completed, %d event(s) processed:\n\n", len(results))
			for _, r := range results {
				if r.Err != nil {
					fmt.Printf("  ✗ %s (%s): %v\n", r.EventTitle, r.EventID, r.Err)
				} else {
					fmt.Printf("  ✓ %s (%s) purged\n", r.EventTitle, r.EventID)
				}
			}
			fmt.Println()

			return nil
		},
	}
}

func runCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runCleanup",
		Short: "Remove the reusable contacts of no-show volunteers from ended events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			results, err := services.RunNoShowCleanup(app.ctx, app.database, app.logger, now, app.cfg.CleanupGrace())
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Println("\nNo events due for cleanup.")
			} else {
				fmt.Printf("\n✓ Cleanup completed, %d event(s) processed:\n\n", len(results))
				for _, r := range results {
					if r.Err != nil {
						fmt.Printf("  ✗ %s (%s): %v\n", r.EventTitle, r.EventID, r.Err)
						continue
					}
					fmt.Printf("  ✓ %s: %d no-show(s), %d contact(s) removed\n",
						r.EventTitle, r.NoShows, r.ContactsRemoved)
				}
				fmt.Println()
			}

			if next := app.cfg.NextCleanupRun(now); !next.IsZero() {
				fmt.Printf("Next scheduled run: %s\n", next.Local().Format("2006-01-02 15:04"))
			}

			return nil
		},
	}
}

func shareEventCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "share <event_id> <grantee_id> <view|edit>",
		Short: "Grant another organizer access to an event",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			share, err := services.ShareEvent(app.ctx, app.database, app.logger, userID, args[0], args[1], args[2])
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Event shared with %s (%s access)\n", share.SharedWith, share.PermissionLevel)
			return nil
		},
	}
}

func listEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listEvents",
		Short: "List events (public listing, or the acting user's own with --user)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := services.ListEvents(app.ctx, app.database, userID)
			if err != nil {
				return err
			}

			if len(events) == 0 {
				fmt.Println("\nNo events found.")
				return nil
			}

			fmt.Printf("\nFound %d event(s):\n\n", len(events))
			for _, e := range events {
				marker := ""
				if e.Deleted() {
					marker = " [deleted]"
				}
				fmt.Printf("- %s  %s  %s (%s)%s\n",
					e.Start.Local().Format("2006-01-02 15:04"),
					e.Title,
					e.ID,
					e.Status,
					marker,
				)
			}
			fmt.Println()

			return nil
		},
	}
}

func viewEventCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "viewEvent <event_id>",
		Short: "Show an event with per-role slot availability",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := app.database.GetEvent(app.ctx, args[0])
			if err != nil {
				return err
			}

			canView, err := app.oracle.CanView(app.ctx, userID, event)
			if err != nil {
				return err
			}
			if !canView {
				return fmt.Errorf("event %s is not visible to you", args[0])
			}

			fmt.Printf("\n%s (%s)\n", event.Title, event.Status)
			if event.Location != "" {
				fmt.Printf("Location: %s\n", event.Location)
			}
			fmt.Printf("Starts:   %s\n", event.Start.Local().Format("2006-01-02 15:04"))
			fmt.Printf("Ends:     %s\n", event.End.Local().Format("2006-01-02 15:04"))
			if event.Deleted() {
				fmt.Printf("Deleted:  %s\n", event.DeletedAt.Local().Format("2006-01-02 15:04"))
			}

			roles, err := app.database.GetEventRoles(app.ctx, event.ID)
			if err != nil {
				return err
			}

			if len(roles) == 0 {
				fmt.Println("\nNo roles defined yet.")
				return nil
			}

			fmt.Printf("\nRoles:\n")
			for i := range roles {
				role := &roles[i]
				counts, err := app.database.CountConfirmed(app.ctx, role.ID)
				if err != nil {
					return err
				}
				remaining := roster.Remaining(role, counts)
				fmt.Printf("  %s (%s)\n", role.Name, role.ID)
				fmt.Printf("    Shift: %s - %s\n",
					role.ShiftStart.Local().Format("15:04"),
					role.ShiftEnd.Local().Format("15:04"))
				fmt.Printf("    Open:  %d brothers, %d sisters, %d flexible\n",
					remaining.Brother, remaining.Sister, remaining.Flexible)
			}
			fmt.Println()

			return nil
		},
	}
}

func listContactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listContacts",
		Short: "List the reusable volunteer contact pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			contacts, err := app.database.GetContacts(app.ctx)
			if err != nil {
				return err
			}

			if len(contacts) == 0 {
				fmt.Println("\nContact pool is empty.")
				return nil
			}

			fmt.Printf("\nFound %d contact(s):\n\n", len(contacts))
			for _, c := range contacts {
				fmt.Printf("- %s (%s) since %s\n",
					c.Name, c.Phone, c.CreatedAt.Local().Format("2006-01-02"))
			}
			fmt.Println()

			return nil
		},
	}
}

func viewLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "viewLog [limit]",
		Short: "View the most recent activity log entries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := 50
			if len(args) > 0 {
				var err error
				limit, err = strconv.Atoi(args[0])
				if err != nil || limit <= 0 {
					return fmt.Errorf("limit must be a positive number")
				}
			}

			entries, err := app.database.ListActivity(app.ctx, limit)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("\nActivity log is empty.")
				return nil
			}

			fmt.Printf("\nLast %d entries:\n\n", len(entries))
			for _, entry := range entries {
				fmt.Printf("%s  %-6s  %s (%s) - %s / %s\n",
					entry.CreatedAt.Local().Format("2006-01-02 15:04"),
					entry.Operation,
					entry.VolunteerName,
					entry.Phone,
					entry.EventTitle,
					entry.RoleName,
				)
			}
			fmt.Println()

			return nil
		},
	}
}
