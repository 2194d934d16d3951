package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/mrlokans/growlin/internal/audit"
	"github.com/mrlokans/growlin/internal/auth"
	"github.com/mrlokans/growlin/internal/circulation"
	"github.com/mrlokans/growlin/internal/config"
	"github.com/mrlokans/growlin/internal/database"
	auditrepo "github.com/mrlokans/growlin/internal/database/audit"
	"github.com/mrlokans/growlin/internal/database/catalog"
	"github.com/mrlokans/growlin/internal/database/loans"
	"github.com/mrlokans/growlin/internal/database/users"
	"github.com/mrlokans/growlin/internal/entities"
)

type sampleGroup struct {
	name    string
	members []string
}

// The planets and their moons.
var sampleGroups = []sampleGroup{
	{name: "Earth", members: []string{"Moon"}},
	{name: "Mars", members: []string{"Phobos", "Deimos"}},
	{name: "Jupiter", members: []string{"Io", "Europa", "Ganymede", "Callisto"}},
	{name: "Saturn", members: []string{"Titan", "Enceladus", "Tethys", "Mimas", "Dione"}},
}

var sampleAdmins = map[string]bool{"europa": true, "moon": true}

type sampleCopy struct {
	accession string
	source    string
}

type samplePublication struct {
	title    string
	comments string
	keywords []string
	copies   []sampleCopy
}

var samplePublications = []samplePublication{
	{
		title:    "The Slippery Seals",
		comments: "The first book in the SNAP booklet series",
		keywords: []string{"snap", "seals", "wildlife"},
		copies: []sampleCopy{
			{accession: "1", source: "Stolen from the store!"},
			{accession: "2", source: "A gift from the valley"},
		},
	},
	{
		title:    "The Ferocious Felids",
		comments: "The second book in the SNAP booklet series",
		keywords: []string{"snap", "cats", "lions", "tigers", "leopards", "wildlife"},
		copies: []sampleCopy{
			{accession: "3", source: "Bought at Ascraeus Mons"},
		},
	},
}

// SeedCommand fills an empty register with sample borrowers, items and loans.
type SeedCommand struct {
	DatabasePath string
	Password     string

	config *config.Config
	out    io.Writer
}

func NewSeedCommand(cfg *config.Config) *SeedCommand {
	return &SeedCommand{config: cfg, out: os.Stdout}
}

func (cmd *SeedCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)

	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the SQLite database (defaults to DATABASE_PATH)")
	fs.StringVar(&cmd.Password, "password", "", "Password for every sample user (a random one is generated and printed if empty)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s seed [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Fill an empty register with sample data for trying things out.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *SeedCommand) Run() error {
	db, err := openDatabase(cmd.config, cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	userRepo := users.NewRepository(db.DB)
	count, err := userRepo.CountUsers()
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("the register already has %d users, seed an empty database", count)
	}

	password := cmd.Password
	if password == "" {
		if password, err = auth.GeneratePassword(); err != nil {
			return fmt.Errorf("failed to generate password: %w", err)
		}
		fmt.Fprintf(cmd.out, "Sample password: %s\n", password)
	}

	fmt.Fprint(cmd.out, "[users]")
	created, err := cmd.seedUsers(userRepo, password)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.out, " [items]")
	items, err := cmd.seedItems(db)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.out, " [loans]")
	auditService := audit.NewService(auditrepo.NewRepository(db.DB))
	defer auditService.Flush()
	if err := cmd.seedLoans(db, auditService, created["europa"], items); err != nil {
		return err
	}

	fmt.Fprintln(cmd.out, " done.")
	return nil
}

func (cmd *SeedCommand) seedUsers(repo *users.Repository, password string) (map[string]*entities.User, error) {
	service := auth.NewService(repo, cmd.config.Auth)
	created := make(map[string]*entities.User)

	for position, group := range sampleGroups {
		g, err := repo.GetOrCreateGroup(group.name, position)
		if err != nil {
			return nil, fmt.Errorf("failed to create group %s: %w", group.name, err)
		}
		for _, name := range group.members {
			username := strings.ToLower(name)
			var roles []string
			if sampleAdmins[username] {
				roles = []string{entities.RoleAdmin}
			}
			user, err := service.CreateUser(auth.NewUser{
				Username: username,
				Name:     name,
				Password: password,
				GroupID:  g.ID,
				Roles:    roles,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create user %s: %w", username, err)
			}
			created[username] = user
		}
	}
	return created, nil
}

func (cmd *SeedCommand) seedItems(db *database.Database) (map[string]*entities.Item, error) {
	repo := catalog.NewRepository(db.DB)

	location, err := repo.GetOrCreateLocation("Main", false)
	if err != nil {
		return nil, err
	}
	book, err := repo.GetItemTypeByName("Book")
	if err != nil {
		return nil, fmt.Errorf("failed to find the book item type: %w", err)
	}
	genre, err := repo.GetOrCreateGenre("Wildlife")
	if err != nil {
		return nil, err
	}
	publisher, err := repo.GetOrCreatePublisher("SNAP")
	if err != nil {
		return nil, err
	}

	received := datatypes.Date(time.Now())
	items := make(map[string]*entities.Item)
	for _, pub := range samplePublications {
		for _, c := range pub.copies {
			item := &entities.Item{
				Accession:        c.accession,
				Kind:             entities.ItemKindBook,
				Title:            pub.title,
				Keywords:         pub.keywords,
				Comments:         pub.comments,
				CampusLocationID: location.ID,
				ReceiptDate:      received,
				Source:           c.source,
				ItemTypeID:       &book.ID,
				PublisherID:      &publisher.ID,
				Genres:           []entities.Genre{*genre},
			}
			if err := repo.CreateItem(item); err != nil {
				return nil, fmt.Errorf("failed to create item %s: %w", c.accession, err)
			}
			items[c.accession] = item
		}
	}
	return items, nil
}

// seedLoans leaves copies 2 and 3 with Europa and two returned loans in history.
func (cmd *SeedCommand) seedLoans(db *database.Database, auditor circulation.Auditor, europa *entities.User, items map[string]*entities.Item) error {
	service := circulation.NewService(loans.NewRepository(db.DB), auditor, circulation.Policy{
		Period:         cmd.config.Loans.Period,
		LongTermPeriod: cmd.config.Loans.LongTermPeriod,
		MaxPerBorrower: cmd.config.Loans.MaxPerBorrower,
	})
	ctx := context.Background()

	steps := []struct {
		accession string
		borrow    bool
	}{
		{"1", true}, {"1", false},
		{"2", true},
		{"3", true}, {"3", false}, {"3", true},
	}
	for _, step := range steps {
		item := items[step.accession]
		var err error
		if step.borrow {
			_, err = service.Borrow(ctx, circulation.BorrowRequest{BorrowerID: europa.ID, ItemID: item.ID, Accession: step.accession})
		} else {
			_, err = service.Unborrow(ctx, circulation.ReturnRequest{BorrowerID: europa.ID, ItemID: item.ID, Accession: step.accession})
		}
		if err != nil {
			return fmt.Errorf("failed to replay loan of %s: %w", step.accession, err)
		}
	}
	return nil
}
