//go:build integration

package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/lib/pq"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenwatch/identity-notify-service/internal/adapters/repository/migrations"
	"github.com/xenwatch/identity-notify-service/internal/config"
	"github.com/xenwatch/identity-notify-service/internal/core/domain"
)

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := postgres.RunContainer(ctx,
		tc.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("xenwatch"),
		postgres.WithUsername("xenwatch"),
		postgres.WithPassword("xenwatch"),
		tc.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(time.Minute)),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	uri, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("postgres", uri)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := migrations.Up(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func mustExec(t *testing.T, db *sql.DB, q string, args ...any) {
	t.Helper()
	if _, err := db.Exec(q, args...); err != nil {
		t.Fatalf("%s: %v", q, err)
	}
}

func TestPostgres_Repositories(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	mustExec(t, db, "INSERT INTO schools (id, name) VALUES ('school-1', 'Lincoln High')")
	mustExec(t, db, `INSERT INTO users (id, email, name, role, school_id) VALUES
		('stu-1', 'stu@example.com', 'Jordan', 'student', 'school-1'),
		('stu-2', 'stu2@example.com', 'Jordan', 'student', 'school-1'),
		('sa-1', 'sa@example.com', 'Pat', 'school_admin', 'school-1'),
		('scout-1', 'scout@example.com', 'Sam', 'xen_scout', NULL),
		('sys-1', 'sys@example.com', 'Root', 'system_admin', NULL)`)

	t.Run("notification_natural_key_is_unique", func(t *testing.T) {
		repo := NewNotificationRepository(db, config.NewCircuitBreaker(config.BreakerPostgres, nil))
		n := &domain.Notification{
			ID: "n1", RecipientID: "sys-1", Kind: domain.KindSchoolCreated,
			SubjectType: domain.SubjectSchool, SubjectID: "school-1",
			Title: "New school", Message: "Lincoln High has been added.",
			Metadata: map[string]any{"school_id": "school-1"}, CreatedAt: time.Now().UTC(),
		}
		if err := repo.Insert(ctx, n); err != nil {
			t.Fatalf("insert: %v", err)
		}
		dup := *n
		dup.ID = "n2"
		if err := repo.Insert(ctx, &dup); !errors.Is(err, domain.ErrDuplicateNotification) {
			t.Fatalf("expected duplicate, got %v", err)
		}

		found, err := repo.FindMatching(ctx, n.Key())
		if err != nil || len(found) != 1 {
			t.Fatalf("expected one match, got %d (%v)", len(found), err)
		}
		if found[0].Metadata["school_id"] != "school-1" {
			t.Errorf("metadata not round-tripped: %v", found[0].Metadata)
		}

		count, err := repo.CountUnread(ctx, "sys-1")
		if err != nil || count != 1 {
			t.Fatalf("expected 1 unread, got %d (%v)", count, err)
		}
		if err := repo.MarkRead(ctx, "stu-1", "n1"); !errors.Is(err, domain.ErrNotificationNotFound) {
			t.Errorf("expected not found for foreign recipient, got %v", err)
		}
		if err := repo.MarkRead(ctx, "sys-1", "n1"); err != nil {
			t.Errorf("mark read: %v", err)
		}
	})

	t.Run("per_actor_keys_coexist", func(t *testing.T) {
		repo := NewNotificationRepository(db, config.NewCircuitBreaker(config.BreakerPostgres, nil))
		for i, actor := range []string{"a", "b"} {
			a := actor
			err := repo.Insert(ctx, &domain.Notification{
				ID: "r" + actor, RecipientID: "scout-1", Kind: domain.KindReviewSubmitted,
				SubjectType: domain.SubjectSubmission, SubjectID: "sub-1", RelatedActorID: &a,
				Title: "Review", Message: "m", CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
			})
			if err != nil {
				t.Fatalf("insert %s: %v", actor, err)
			}
		}
		all, err := repo.FindMatching(ctx, domain.DedupKey{
			RecipientID: "scout-1", Kind: domain.KindReviewSubmitted,
			SubjectType: domain.SubjectSubmission, SubjectID: "sub-1",
		})
		if err != nil || len(all) != 2 {
			t.Fatalf("expected 2 rows for any actor, got %d (%v)", len(all), err)
		}
		list, err := repo.ListForRecipient(ctx, "scout-1", 1, 0)
		if err != nil || len(list) != 1 || list[0].ID != "rb" {
			t.Errorf("expected newest first, got %+v (%v)", list, err)
		}
	})

	t.Run("profile_tables_repair_flow", func(t *testing.T) {
		users := NewUserRepository(db)
		tables := NewProfileTables(db)

		u, err := users.GetUser(ctx, "stu-1")
		if err != nil || u == nil {
			t.Fatalf("get user: %v", err)
		}
		mustExec(t, db, `INSERT INTO student_profiles (id, user_id, school_id, display_name)
			VALUES ('namesake', 'stu-2', 'school-1', 'Jordan')`)
		students := tables[domain.RoleStudent]
		if p, _ := students.FindByNaturalKey(ctx, u); p != nil {
			t.Fatalf("namesake must not be adopted, got %+v", p)
		}
		created, err := students.Create(ctx, u)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := users.UpdateLinkedID(ctx, u.ID, created.ID); err != nil {
			t.Fatal(err)
		}
		adopted, err := students.FindByNaturalKey(ctx, u)
		if err != nil || adopted == nil || adopted.ID != created.ID {
			t.Fatalf("expected to find created profile, got %+v (%v)", adopted, err)
		}
		if adopted.UserID != u.ID {
			t.Errorf("expected owner %s, got %s", u.ID, adopted.UserID)
		}

		scout, _ := users.GetUser(ctx, "scout-1")
		if _, err := tables[domain.RoleXenScout].Create(ctx, scout); !errors.Is(err, domain.ErrRepairImpossible) {
			t.Errorf("directory must refuse creation, got %v", err)
		}
	})

	t.Run("recipients", func(t *testing.T) {
		repo := NewRecipientRepository(db)
		ids, err := repo.UserIDsByRoles(ctx, domain.RoleSystemAdmin, domain.RoleXenScout)
		if err != nil || len(ids) != 2 {
			t.Fatalf("expected 2 users, got %v (%v)", ids, err)
		}
		admins, err := repo.SchoolAdminIDs(ctx, "school-1")
		if err != nil || len(admins) != 1 || admins[0] != "sa-1" {
			t.Errorf("unexpected school admins %v (%v)", admins, err)
		}
		name, err := repo.SchoolName(ctx, "school-1")
		if err != nil || name != "Lincoln High" {
			t.Errorf("unexpected school name %q (%v)", name, err)
		}
	})
}
