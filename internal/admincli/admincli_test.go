package admincli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/repositories/memstore"
	"github.com/yigit/scms/internal/app/services"
	"github.com/yigit/scms/internal/pkg/auth"
	"golang.org/x/crypto/bcrypt"
)

type harness struct {
	store *memstore.Store
	svc   *services.Services
	out   *bytes.Buffer
	app   *cli.App
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	color.NoColor = true

	store := memstore.New()
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SecretKey:       "test-secret",
		AccessTokenExp:  time.Hour,
		RefreshTokenExp: 24 * time.Hour,
		TokenIssuer:     "scms-test",
	})
	svc := services.NewServices(store, services.Options{JWTService: jwtService, BcryptCost: bcrypt.MinCost}, zerolog.Nop())

	h := &harness{store: store, svc: svc, out: &bytes.Buffer{}}
	h.app = NewApp(func(context.Context, string) (*Env, error) {
		return &Env{Store: store, Services: svc, Logger: zerolog.Nop()}, nil
	})
	h.app.Writer = h.out
	h.app.ErrWriter = h.out
	h.app.ExitErrHandler = func(*cli.Context, error) {}
	return h
}

func (h *harness) run(args ...string) error {
	h.out.Reset()
	return h.app.Run(append([]string{"scmsctl"}, args...))
}

func TestCreateAdmin(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("create-admin", "--email", "root@example.com", "--password", "secret123"))
	assert.Contains(t, h.out.String(), "Successfully created admin account: admin (root@example.com)")

	admins, err := h.svc.UserService.ListAdmins(context.Background())
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, models.RoleAdmin, admins[0].RoleType)
}

func TestCreateAdminRequiresForceToReplace(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("create-admin", "--email", "root@example.com"))

	err := h.run("create-admin", "--username", "boss", "--email", "boss@example.com")
	require.Error(t, err)
	assert.Contains(t, h.out.String(), "Use --force flag")

	require.NoError(t, h.run("create-admin", "--username", "boss", "--email", "boss@example.com", "--force"))
	assert.Contains(t, h.out.String(), "Replaced existing admin: admin")

	admins, err := h.svc.UserService.ListAdmins(context.Background())
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "boss", admins[0].Username)
}

func TestListAdmins(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("list-admins"))
	assert.Contains(t, h.out.String(), "No admin accounts found")

	require.NoError(t, h.run("create-admin", "--email", "root@example.com"))
	require.NoError(t, h.run("list-admins"))
	assert.Contains(t, h.out.String(), "Found 1 admin account(s)")
	assert.Contains(t, h.out.String(), "root@example.com")
}

func TestCleanupAdminsAlreadyClean(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("create-admin", "--email", "root@example.com"))

	require.NoError(t, h.run("cleanup-admins"))
	assert.Contains(t, h.out.String(), "already clean - only 1 admin(s)")
}

func TestSeedAndBackfill(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("seed"))
	assert.Contains(t, h.out.String(), "Sample data loaded")

	require.NoError(t, h.run("backfill-profiles"))
	assert.Contains(t, h.out.String(), "No student profiles needed")

	require.NoError(t, h.run("seed", "--clear"))
	assert.Contains(t, h.out.String(), "Clearing existing students and courses")
}

func TestBackfillCreatesMissingProfiles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user := &models.User{Username: "orphan", Email: "orphan@example.com", Password: "x", RoleType: models.RoleStudent, IsActive: true}
	require.NoError(t, h.store.Repos().UserRepository.Create(ctx, user))

	require.NoError(t, h.run("backfill-profiles"))
	assert.Contains(t, h.out.String(), "Successfully created 1 student profiles")
	assert.Contains(t, h.out.String(), "orphan")
}

func TestMigrateWithoutSchema(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("migrate"))
	assert.Contains(t, h.out.String(), "Nothing to migrate")
}
