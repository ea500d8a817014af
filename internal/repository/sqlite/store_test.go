package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vladkruhlyk/git-bot.statistic/internal/apperror"
	"github.com/vladkruhlyk/git-bot.statistic/internal/model"
	"github.com/vladkruhlyk/git-bot.statistic/internal/repository"
)

// newTestDB returns a throwaway in-memory database, closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser upserts a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, telegramID int64) string {
	t.Helper()
	id, err := db.UpsertUser(context.Background(), telegramID)
	if err != nil {
		t.Fatalf("failed to upsert test user: %v", err)
	}
	return id
}

func testAccounts(userID string, n int) []model.AdAccount {
	accounts := make([]model.AdAccount, 0, n)
	for i := 0; i < n; i++ {
		accounts = append(accounts, model.AdAccount{
			UserID:    userID,
			AccountID: fmt.Sprintf("act_%03d", i),
			Name:      fmt.Sprintf("Account %03d", i),
			Currency:  "USD",
		})
	}
	return accounts
}

// =========================================================================
// USER TESTS
// =========================================================================

func TestUpsertUser_CreatesOnce(t *testing.T) {
	db := newTestDB(t)

	first, err := db.UpsertUser(context.Background(), 42)
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if first == "" {
		t.Fatal("UpsertUser() returned empty id")
	}

	// Second contact with the same Telegram identity returns the same row.
	second, err := db.UpsertUser(context.Background(), 42)
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if first != second {
		t.Errorf("UpsertUser() = %q on repeat, want %q", second, first)
	}
}

func TestUpsertUser_DistinctUsers(t *testing.T) {
	db := newTestDB(t)

	a := createTestUser(t, db, 1)
	b := createTestUser(t, db, 2)
	if a == b {
		t.Error("distinct Telegram IDs mapped to the same internal user")
	}
}

// =========================================================================
// CONNECTION TESTS
// =========================================================================

func TestConnection_SaveAndGet(t *testing.T) {
	db := newTestDB(t)
	userID := createTestUser(t, db, 42)

	if err := db.SaveConnection(context.Background(), userID, "blob-1", model.TokenValid); err != nil {
		t.Fatalf("SaveConnection() error = %v", err)
	}

	conn, err := db.GetConnection(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetConnection() error = %v", err)
	}
	if conn.EncryptedToken != "blob-1" {
		t.Errorf("EncryptedToken = %q, want %q", conn.EncryptedToken, "blob-1")
	}
	if conn.Status != model.TokenValid {
		t.Errorf("Status = %q, want valid", conn.Status)
	}
}

func TestConnection_Overwrite(t *testing.T) {
	db := newTestDB(t)
	userID := createTestUser(t, db, 42)

	if err := db.SaveConnection(context.Background(), userID, "blob-1", model.TokenValid); err != nil {
		t.Fatalf("SaveConnection() error = %v", err)
	}
	if err := db.SaveConnection(context.Background(), userID, "blob-2", model.TokenInvalid); err != nil {
		t.Fatalf("SaveConnection() error = %v", err)
	}

	conn, err := db.GetConnection(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetConnection() error = %v", err)
	}
	if conn.EncryptedToken != "blob-2" || conn.Status != model.TokenInvalid {
		t.Errorf("connection = {%q, %q}, want overwritten {blob-2, invalid}", conn.EncryptedToken, conn.Status)
	}
}

func TestGetConnection_NotFound(t *testing.T) {
	db := newTestDB(t)
	userID := createTestUser(t, db, 42)

	_, err := db.GetConnection(context.Background(), userID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestSetTokenStatus(t *testing.T) {
	db := newTestDB(t)
	userID := createTestUser(t, db, 42)

	if err := db.SaveConnection(context.Background(), userID, "blob", model.TokenValid); err != nil {
		t.Fatalf("SaveConnection() error = %v", err)
	}
	if err := db.SetTokenStatus(context.Background(), userID, model.TokenInvalid); err != nil {
		t.Fatalf("SetTokenStatus() error = %v", err)
	}

	conn, err := db.GetConnection(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetConnection() error = %v", err)
	}
	if conn.Status != model.TokenInvalid {
		t.Errorf("Status = %q, want invalid", conn.Status)
	}
	// Only the flag flips; the protected blob stays as an audit record.
	if conn.EncryptedToken != "blob" {
		t.Errorf("EncryptedToken = %q, want untouched %q", conn.EncryptedToken, "blob")
	}
}

func TestSetTokenStatus_NoConnection(t *testing.T) {
	db := newTestDB(t)
	userID := createTestUser(t, db, 42)

	err := db.SetTokenStatus(context.Background(), userID, model.TokenInvalid)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// AD ACCOUNT TESTS
// =========================================================================

func TestReplaceAdAccounts_FullReplace(t *testing.T) {
	db := newTestDB(t)
	userID := createTestUser(t, db, 42)

	if err := db.ReplaceAdAccounts(context.Background(), userID, testAccounts(userID, 5)); err != nil {
		t.Fatalf("ReplaceAdAccounts() error = %v", err)
	}

	replacement := []model.AdAccount{
		{UserID: userID, AccountID: "act_900", Name: "Fresh", Currency: "EUR"},
	}
	if err := db.ReplaceAdAccounts(context.Background(), userID, replacement); err != nil {
		t.Fatalf("ReplaceAdAccounts() error = %v", err)
	}

	items, total, err := db.AdAccountsPage(context.Background(), userID, 0, 8)
	if err != nil {
		t.Fatalf("AdAccountsPage() error = %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("after replace: total = %d, len = %d, want 1, 1", total, len(items))
	}
	if items[0].AccountID != "act_900" {
		t.Errorf("surviving account = %q, want act_900", items[0].AccountID)
	}
}

func TestReplaceAdAccounts_Idempotent(t *testing.T) {
	db := newTestDB(t)
	userID := createTestUser(t, db, 42)
	accounts := testAccounts(userID, 3)

	// Replaying the same replacement twice must not accumulate rows.
	for i := 0; i < 2; i++ {
		if err := db.ReplaceAdAccounts(context.Background(), userID, accounts); err != nil {
			t.Fatalf("ReplaceAdAccounts() round %d error = %v", i, err)
		}
	}

	_, total, err := db.AdAccountsPage(context.Background(), userID, 0, 8)
	if err != nil {
		t.Fatalf("AdAccountsPage() error = %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
}

func TestAdAccountsPage_OrderAndBounds(t *testing.T) {
	db := newTestDB(t)
	userID := createTestUser(t, db, 42)

	// Insert deliberately out of name order.
	accounts := []model.AdAccount{
		{UserID: userID, AccountID: "act_3", Name: "Charlie", Currency: "USD"},
		{UserID: userID, AccountID: "act_1", Name: "Alpha", Currency: "USD"},
		{UserID: userID, AccountID: "act_2", Name: "Bravo", Currency: "USD"},
	}
	if err := db.ReplaceAdAccounts(context.Background(), userID, accounts); err != nil {
		t.Fatalf("ReplaceAdAccounts() error = %v", err)
	}

	items, total, err := db.AdAccountsPage(context.Background(), userID, 0, 2)
	if err != nil {
		t.Fatalf("AdAccountsPage() error = %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(items) != 2 || items[0].Name != "Alpha" || items[1].Name != "Bravo" {
		t.Errorf("page 0 = %v, want [Alpha Bravo]", items)
	}

	items, _, err = db.AdAccountsPage(context.Background(), userID, 1, 2)
	if err != nil {
		t.Fatalf("AdAccountsPage() error = %v", err)
	}
	if len(items) != 1 || items[0].Name != "Charlie" {
		t.Errorf("page 1 = %v, want [Charlie]", items)
	}

	// Past the end: empty page, same total.
	items, total, err = db.AdAccountsPage(context.Background(), userID, 5, 2)
	if err != nil {
		t.Fatalf("AdAccountsPage() error = %v", err)
	}
	if len(items) != 0 || total != 3 {
		t.Errorf("page 5 = %d items, total %d, want 0 items, total 3", len(items), total)
	}
}

func TestAdAccount_Lookup(t *testing.T) {
	db := newTestDB(t)
	userID := createTestUser(t, db, 42)

	if err := db.ReplaceAdAccounts(context.Background(), userID, testAccounts(userID, 2)); err != nil {
		t.Fatalf("ReplaceAdAccounts() error = %v", err)
	}

	account, err := db.AdAccount(context.Background(), userID, "act_001")
	if err != nil {
		t.Fatalf("AdAccount() error = %v", err)
	}
	if account.Name != "Account 001" {
		t.Errorf("Name = %q, want %q", account.Name, "Account 001")
	}

	_, err = db.AdAccount(context.Background(), userID, "act_999")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestAdAccount_ScopedToUser(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, 1)
	bob := createTestUser(t, db, 2)

	if err := db.ReplaceAdAccounts(context.Background(), alice, testAccounts(alice, 1)); err != nil {
		t.Fatalf("ReplaceAdAccounts() error = %v", err)
	}

	// Bob cannot see Alice's account.
	_, err := db.AdAccount(context.Background(), bob, "act_000")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// USER STATE TESTS
// =========================================================================

func TestUserState_EmptyByDefault(t *testing.T) {
	db := newTestDB(t)
	userID := createTestUser(t, db, 42)

	state, err := db.UserState(context.Background(), userID)
	if err != nil {
		t.Fatalf("UserState() error = %v", err)
	}
	if state.SelectedAccountID != nil || state.SelectedPeriod != nil {
		t.Errorf("fresh state = %+v, want both selections nil", state)
	}
}

func TestSetUserState_IndependentFields(t *testing.T) {
	db := newTestDB(t)
	userID := createTestUser(t, db, 42)

	accountID := "act_001"
	if err := db.SetUserState(context.Background(), userID, repository.StatePatch{
		SelectedAccountID: &accountID,
	}); err != nil {
		t.Fatalf("SetUserState(account) error = %v", err)
	}

	p := model.Period{Kind: model.PeriodToday, Since: "2024-06-10", Until: "2024-06-10"}
	if err := db.SetUserState(context.Background(), userID, repository.StatePatch{
		SelectedPeriod: &p,
	}); err != nil {
		t.Fatalf("SetUserState(period) error = %v", err)
	}

	// Setting the period must not revert the account selection.
	state, err := db.UserState(context.Background(), userID)
	if err != nil {
		t.Fatalf("UserState() error = %v", err)
	}
	if state.SelectedAccountID == nil || *state.SelectedAccountID != accountID {
		t.Errorf("SelectedAccountID = %v, want %q", state.SelectedAccountID, accountID)
	}
	if state.SelectedPeriod == nil || *state.SelectedPeriod != p {
		t.Errorf("SelectedPeriod = %v, want %+v", state.SelectedPeriod, p)
	}
}

func TestSetUserState_ClearSingleField(t *testing.T) {
	db := newTestDB(t)
	userID := createTestUser(t, db, 42)

	accountID := "act_001"
	p := model.Period{Kind: model.PeriodYesterday, Since: "2024-06-09", Until: "2024-06-09"}
	if err := db.SetUserState(context.Background(), userID, repository.StatePatch{
		SelectedAccountID: &accountID,
		SelectedPeriod:    &p,
	}); err != nil {
		t.Fatalf("SetUserState() error = %v", err)
	}

	if err := db.SetUserState(context.Background(), userID, repository.StatePatch{
		ClearAccountID: true,
	}); err != nil {
		t.Fatalf("SetUserState(clear account) error = %v", err)
	}

	state, err := db.UserState(context.Background(), userID)
	if err != nil {
		t.Fatalf("UserState() error = %v", err)
	}
	if state.SelectedAccountID != nil {
		t.Errorf("SelectedAccountID = %v, want cleared", state.SelectedAccountID)
	}
	if state.SelectedPeriod == nil || *state.SelectedPeriod != p {
		t.Errorf("SelectedPeriod = %v, want untouched %+v", state.SelectedPeriod, p)
	}
}

func TestSetUserState_PeriodRoundTrip(t *testing.T) {
	db := newTestDB(t)
	userID := createTestUser(t, db, 42)

	p := model.Period{Kind: model.PeriodCustom, Since: "2024-01-05", Until: "2024-01-10"}
	if err := db.SetUserState(context.Background(), userID, repository.StatePatch{SelectedPeriod: &p}); err != nil {
		t.Fatalf("SetUserState() error = %v", err)
	}

	state, err := db.UserState(context.Background(), userID)
	if err != nil {
		t.Fatalf("UserState() error = %v", err)
	}
	if state.SelectedPeriod == nil || *state.SelectedPeriod != p {
		t.Errorf("SelectedPeriod = %v, want %+v", state.SelectedPeriod, p)
	}
}
