package app

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"autoeden/pkg/auth"
	"autoeden/pkg/domain"
	"autoeden/pkg/mail"
	"autoeden/pkg/queue"
	"autoeden/pkg/storage"
	"autoeden/pkg/store"
)

// recordingQueue captures enqueued tasks instead of touching redis.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []queue.Task
}

func (q *recordingQueue) Enqueue(_ context.Context, kind, payload string) (queue.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task := queue.Task{ID: kind, Kind: kind, Payload: payload, Status: queue.StatusQueued}
	q.tasks = append(q.tasks, task)
	return task, nil
}

func (q *recordingQueue) byKind(kind string) []queue.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queue.Task
	for _, t := range q.tasks {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

type testEnv struct {
	app     *App
	store   *store.MemoryStore
	queue   *recordingQueue
	mailer  *mail.Recorder
	objects *storage.MemoryStore
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   store.NewMemoryStore(),
		queue:   &recordingQueue{},
		mailer:  mail.NewRecorder(),
		objects: storage.NewMemoryStore(),
		now:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	a, err := New(Config{
		Store:         env.store,
		RefreshTokens: store.NewMemoryRefreshTokenStore(),
		Tokens:        auth.NewTokenService("test-secret", 15*time.Minute),
		Queue:         env.queue,
		Objects:       env.objects,
		Mailer:        env.mailer,
		PublicBaseURL: "https://autoeden.test",
		Now:           func() time.Time { return env.now },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	env.app = a
	return env
}

func (env *testEnv) register(t *testing.T, username, email string) domain.User {
	t.Helper()
	user, _, err := env.app.Register(context.Background(), username, email, "hunter22pass")
	if err != nil {
		t.Fatalf("Register %s: %v", email, err)
	}
	return user
}

func marketplaceInput(vin string) VehicleInput {
	price := 15000.0
	return VehicleInput{
		Make:        "Toyota",
		Model:       "Hilux",
		Year:        2020,
		VIN:         vin,
		Mileage:     45000,
		Location:    "Harare",
		ListingType: domain.ListingMarketplace,
		Price:       &price,
	}
}

func (env *testEnv) listedVehicle(t *testing.T, owner domain.User, admin domain.User, vin string) domain.Vehicle {
	t.Helper()
	ctx := context.Background()
	vehicle, err := env.app.CreateVehicle(ctx, owner, marketplaceInput(vin))
	if err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}
	vehicle, err = env.app.ReviewVehicle(ctx, admin, vehicle.ID, domain.VerificationPhysical, "")
	if err != nil {
		t.Fatalf("ReviewVehicle: %v", err)
	}
	return vehicle
}

func TestRegisterFirstUserIsAdmin(t *testing.T) {
	env := newTestEnv(t)
	first := env.register(t, "alice", "alice@example.com")
	second := env.register(t, "bob", "bob@example.com")
	if first.Role != domain.RoleAdmin {
		t.Fatalf("first user role = %s, want admin", first.Role)
	}
	if second.Role != domain.RoleUser {
		t.Fatalf("second user role = %s, want user", second.Role)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com")
	if _, _, err := env.app.Register(context.Background(), "alice2", "alice@example.com", "hunter22pass"); err != ErrEmailTaken {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestLoginAndRefresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice", "alice@example.com")

	_, pair, err := env.app.Login(ctx, "alice@example.com", "hunter22pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	rotated, err := env.app.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	// the old token must be dead after rotation
	if _, err := env.app.Refresh(ctx, pair.RefreshToken); err == nil {
		t.Fatal("expected rotated token to be rejected")
	}
}

func TestCreateVehicleRequiresPriceForMarketplace(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "alice", "alice@example.com")

	input := marketplaceInput("JT123456789012345")
	input.Price = nil
	_, err := env.app.CreateVehicle(context.Background(), owner, input)
	var fields domain.FieldErrors
	if !asFieldErrors(err, &fields) {
		t.Fatalf("err = %v, want FieldErrors", err)
	}
	if _, ok := fields["price"]; !ok {
		t.Fatalf("fields = %v, want price error", fields)
	}
}

func TestReviewApprovalNotifiesAndQueuesEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "admin", "admin@example.com")
	owner := env.register(t, "alice", "alice@example.com")

	vehicle := env.listedVehicle(t, owner, admin, "JT123456789012345")
	if !vehicle.IsListedOnMarketplace() {
		t.Fatal("vehicle should be publicly listed after physical verification")
	}
	if vehicle.ReviewedBy != admin.ID || vehicle.ReviewedAt == nil {
		t.Fatal("review stamp missing")
	}

	tasks := env.queue.byKind(queue.KindApprovalEmail)
	if len(tasks) != 1 || tasks[0].Payload != vehicle.ID {
		t.Fatalf("approval email tasks = %+v", tasks)
	}

	notifications, err := env.app.MyNotifications(ctx, owner.ID, true)
	if err != nil {
		t.Fatalf("MyNotifications: %v", err)
	}
	found := false
	for _, n := range notifications {
		if n.Type == domain.NotifyApproval && n.RelatedObjectID == vehicle.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("no approval notification for owner, got %+v", notifications)
	}
}

func TestReviewRejectionRequiresReasonAndClearsOnReReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "admin", "admin@example.com")
	owner := env.register(t, "alice", "alice@example.com")

	vehicle, err := env.app.CreateVehicle(ctx, owner, marketplaceInput("JT123456789012345"))
	if err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}

	if _, err := env.app.ReviewVehicle(ctx, admin, vehicle.ID, domain.VerificationRejected, ""); err == nil {
		t.Fatal("expected rejection without reason to fail")
	}

	rejected, err := env.app.ReviewVehicle(ctx, admin, vehicle.ID, domain.VerificationRejected, "vin plate unreadable")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.RejectionReason != "vin plate unreadable" {
		t.Fatalf("rejection reason = %q", rejected.RejectionReason)
	}

	verified, err := env.app.ReviewVehicle(ctx, admin, rejected.ID, domain.VerificationPhysical, "")
	if err != nil {
		t.Fatalf("re-review: %v", err)
	}
	if verified.RejectionReason != "" {
		t.Fatalf("stale rejection reason %q survived re-review", verified.RejectionReason)
	}
}

func TestMarketplaceHidesUnverified(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "admin", "admin@example.com")
	owner := env.register(t, "alice", "alice@example.com")

	env.listedVehicle(t, owner, admin, "JT123456789012345")
	if _, err := env.app.CreateVehicle(ctx, owner, marketplaceInput("JT000000000000001")); err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}

	payload, err := env.app.Marketplace(ctx, url.Values{})
	if err != nil {
		t.Fatalf("Marketplace: %v", err)
	}
	body := string(payload)
	if !strings.Contains(body, "JT123456789012345") {
		t.Fatalf("listed vehicle missing from marketplace: %s", body)
	}
	if strings.Contains(body, "JT000000000000001") {
		t.Fatalf("pending vehicle leaked into marketplace: %s", body)
	}
}

func TestMarketplaceRejectsMalformedNumbers(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.app.Marketplace(context.Background(), url.Values{"minYear": {"abc"}})
	var fields domain.FieldErrors
	if !asFieldErrors(err, &fields) {
		t.Fatalf("err = %v, want FieldErrors", err)
	}
}

func TestMarketplaceSortsByPriceLowToHigh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "admin", "admin@example.com")
	owner := env.register(t, "alice", "alice@example.com")

	// the cheap vehicle is listed first, so newest-first ordering would
	// put the expensive one ahead of it
	for _, tc := range []struct {
		vin   string
		price float64
	}{
		{"JT000000000000001", 5000},
		{"JT123456789012345", 30000},
	} {
		input := marketplaceInput(tc.vin)
		*input.Price = tc.price
		vehicle, err := env.app.CreateVehicle(ctx, owner, input)
		if err != nil {
			t.Fatalf("CreateVehicle %s: %v", tc.vin, err)
		}
		if _, err := env.app.ReviewVehicle(ctx, admin, vehicle.ID, domain.VerificationPhysical, ""); err != nil {
			t.Fatalf("ReviewVehicle %s: %v", tc.vin, err)
		}
		env.now = env.now.Add(time.Hour)
	}

	payload, err := env.app.Marketplace(ctx, url.Values{"make": {"Toyota"}, "sortBy": {"priceLowHigh"}})
	if err != nil {
		t.Fatalf("Marketplace: %v", err)
	}
	body := string(payload)
	cheap := strings.Index(body, "JT000000000000001")
	costly := strings.Index(body, "JT123456789012345")
	if cheap == -1 || costly == -1 {
		t.Fatalf("both vehicles should be listed: %s", body)
	}
	if cheap > costly {
		t.Fatalf("cheapest vehicle should come first: %s", body)
	}
}

func TestMarketplaceRejectsUnknownSortBy(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.app.Marketplace(context.Background(), url.Values{"sortBy": {"cheapest"}})
	var fields domain.FieldErrors
	if !asFieldErrors(err, &fields) {
		t.Fatalf("err = %v, want FieldErrors", err)
	}
	if _, ok := fields["sortBy"]; !ok {
		t.Fatalf("fields = %+v, want sortBy error", fields)
	}
}

func TestBidFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "admin", "admin@example.com")
	owner := env.register(t, "alice", "alice@example.com")
	buyer := env.register(t, "bob", "bob@example.com")

	vehicle := env.listedVehicle(t, owner, admin, "JT123456789012345")

	if _, err := env.app.PlaceBid(ctx, owner, vehicle.ID, 14000, ""); err != ErrForbidden {
		t.Fatalf("owner bid err = %v, want ErrForbidden", err)
	}

	bid, err := env.app.PlaceBid(ctx, buyer, vehicle.ID, 14000, "cash ready")
	if err != nil {
		t.Fatalf("PlaceBid: %v", err)
	}

	accepted, err := env.app.DecideBid(ctx, admin, bid.ID, true)
	if err != nil {
		t.Fatalf("DecideBid: %v", err)
	}
	if accepted.Status != domain.BidAccepted {
		t.Fatalf("status = %s", accepted.Status)
	}

	// the race loser gets a conflict
	if _, err := env.app.DecideBid(ctx, admin, bid.ID, false); err != ErrConflict {
		t.Fatalf("second decision err = %v, want ErrConflict", err)
	}

	mine, err := env.app.MyBids(ctx, buyer.ID)
	if err != nil {
		t.Fatalf("MyBids: %v", err)
	}
	if len(mine) != 1 || mine[0].Status != domain.BidAccepted {
		t.Fatalf("my bids = %+v", mine)
	}
}

func TestBidRejectedOffMarketplace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.register(t, "alice", "alice@example.com")
	buyer := env.register(t, "bob", "bob@example.com")

	vehicle, err := env.app.CreateVehicle(ctx, owner, marketplaceInput("JT123456789012345"))
	if err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}
	if _, err := env.app.PlaceBid(ctx, buyer, vehicle.ID, 9000, ""); err != ErrNotBiddable {
		t.Fatalf("err = %v, want ErrNotBiddable", err)
	}
}

func TestQuoteCreatedDespiteMailFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "admin", "admin@example.com")
	owner := env.register(t, "alice", "alice@example.com")
	vehicle := env.listedVehicle(t, owner, admin, "JT123456789012345")

	// the quote email goes out synchronously; a send failure must not
	// surface to the requester
	env.mailer.Err = context.DeadlineExceeded
	quote, err := env.app.CreateQuote(ctx, nil, vehicle.ID, QuoteInput{
		FullName:  "Tafadzwa Moyo",
		Email:     "tafadzwa@example.com",
		Telephone: "0772000000",
		Country:   "Zimbabwe",
		City:      "Harare",
	})
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}
	if quote.Status != domain.QuotePending {
		t.Fatalf("status = %s", quote.Status)
	}

	if pdfBytes, ok := env.objects.Get("quotes/" + quote.ID + ".pdf"); !ok || !strings.HasPrefix(string(pdfBytes), "%PDF") {
		t.Fatal("quote pdf was not stored")
	}
	if msgs := env.mailer.Messages(); len(msgs) != 0 {
		t.Fatalf("messages recorded despite send failure: %+v", msgs)
	}
	if _, err := env.app.GetQuote(ctx, admin, quote.ID); err != nil {
		t.Fatalf("quote disappeared after mail failure: %v", err)
	}
}

func TestQuoteEmailCarriesPDFAttachment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "admin", "admin@example.com")
	owner := env.register(t, "alice", "alice@example.com")
	vehicle := env.listedVehicle(t, owner, admin, "JT123456789012345")

	quote, err := env.app.CreateQuote(ctx, nil, vehicle.ID, QuoteInput{
		FullName:  "Tafadzwa Moyo",
		Email:     "tafadzwa@example.com",
		Telephone: "0772000000",
	})
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}
	msgs := env.mailer.Messages()
	if len(msgs) != 2 {
		t.Fatalf("want customer email plus staff copy, got %+v", msgs)
	}
	if msgs[0].To != "tafadzwa@example.com" {
		t.Fatalf("customer email went to %q", msgs[0].To)
	}
	if len(msgs[0].Attachments) != 1 || msgs[0].Attachments[0].ContentType != "application/pdf" {
		t.Fatalf("attachments = %+v", msgs[0].Attachments)
	}
	if want := "autoeden-quote-" + quote.ID + ".pdf"; msgs[0].Attachments[0].Filename != want {
		t.Fatalf("attachment filename = %q, want %q", msgs[0].Attachments[0].Filename, want)
	}
	if msgs[1].To != "admin@example.com" || !msgs[1].HTML {
		t.Fatalf("staff copy = %+v", msgs[1])
	}
}

func TestDeleteVehicleRemovesQuotes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "admin", "admin@example.com")
	owner := env.register(t, "alice", "alice@example.com")
	vehicle := env.listedVehicle(t, owner, admin, "JT123456789012345")

	quote, err := env.app.CreateQuote(ctx, nil, vehicle.ID, QuoteInput{
		FullName:  "Tafadzwa Moyo",
		Email:     "tafadzwa@example.com",
		Telephone: "0772000000",
	})
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}

	if err := env.app.DeleteVehicle(ctx, owner, vehicle.ID); err != nil {
		t.Fatalf("DeleteVehicle: %v", err)
	}
	if _, err := env.app.GetQuote(ctx, admin, quote.ID); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	quotes, err := env.app.ListQuotes(ctx)
	if err != nil {
		t.Fatalf("ListQuotes: %v", err)
	}
	if len(quotes) != 0 {
		t.Fatalf("quotes survived vehicle delete: %+v", quotes)
	}
}

func TestSavedSearchMatchesNewListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin", "admin@example.com")
	owner := env.register(t, "alice", "alice@example.com")
	watcher := env.register(t, "bob", "bob@example.com")

	if _, err := env.app.CreateSearch(ctx, watcher.ID, SearchInput{
		Make: "Toyota", Model: "Hilux", MinYear: 2018, MaxYear: 2024,
		MaxPrice: 20000, MaxMileage: 100000,
	}); err != nil {
		t.Fatalf("CreateSearch: %v", err)
	}

	if _, err := env.app.CreateVehicle(ctx, owner, marketplaceInput("JT123456789012345")); err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}

	searches, err := env.app.MySearches(ctx, watcher.ID)
	if err != nil {
		t.Fatalf("MySearches: %v", err)
	}
	if len(searches) != 1 || searches[0].MatchCount != 1 || searches[0].LastMatched == nil {
		t.Fatalf("searches = %+v", searches)
	}
	if searches[0].Status != domain.SearchMatched {
		t.Fatalf("status = %q, want matched", searches[0].Status)
	}

	notifications, err := env.app.MyNotifications(ctx, watcher.ID, true)
	if err != nil {
		t.Fatalf("MyNotifications: %v", err)
	}
	if len(notifications) == 0 {
		t.Fatal("watcher got no match notification")
	}
}

func TestDraftPublish(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin", "admin@example.com")
	owner := env.register(t, "alice", "alice@example.com")

	draft, err := env.app.SaveDraft(ctx, owner.ID, "", map[string]any{
		"make": "Toyota", "model": "Hilux",
	})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if draft.CompletionPercent != 2*100/7 {
		t.Fatalf("completion = %d", draft.CompletionPercent)
	}

	// incomplete drafts fail validation at publish time
	if _, err := env.app.PublishDraft(ctx, owner, draft.ID); err == nil {
		t.Fatal("expected incomplete draft publish to fail")
	}

	full, err := env.app.SaveDraft(ctx, owner.ID, draft.ID, map[string]any{
		"make": "Toyota", "model": "Hilux", "year": 2020,
		"vin": "JT123456789012345", "mileage": 45000,
		"listingType": "marketplace", "price": 15000,
	})
	if err != nil {
		t.Fatalf("SaveDraft update: %v", err)
	}
	if full.CompletionPercent != 100 {
		t.Fatalf("completion = %d", full.CompletionPercent)
	}

	vehicle, err := env.app.PublishDraft(ctx, owner, full.ID)
	if err != nil {
		t.Fatalf("PublishDraft: %v", err)
	}
	if vehicle.VerificationState != domain.VerificationPending {
		t.Fatalf("published vehicle state = %s", vehicle.VerificationState)
	}
	drafts, err := env.app.MyDrafts(ctx, owner.ID)
	if err != nil {
		t.Fatalf("MyDrafts: %v", err)
	}
	if len(drafts) != 0 {
		t.Fatalf("draft survived publish: %+v", drafts)
	}
}

func TestDraftCleanupTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.register(t, "alice", "alice@example.com")

	if _, err := env.app.SaveDraft(ctx, owner.ID, "", map[string]any{"make": "Mazda"}); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	env.now = env.now.Add(domain.DraftExpiry + time.Hour)

	if err := env.app.HandleTask(ctx, queue.Task{Kind: queue.KindDraftCleanup}); err != nil {
		t.Fatalf("HandleTask: %v", err)
	}
	drafts, err := env.store.ListDraftsByOwner(owner.ID)
	if err != nil {
		t.Fatalf("ListDraftsByOwner: %v", err)
	}
	if len(drafts) != 0 {
		t.Fatalf("expired draft survived cleanup: %+v", drafts)
	}
}

func TestExportCSVAndAudit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "admin", "admin@example.com")
	owner := env.register(t, "alice", "alice@example.com")
	env.listedVehicle(t, owner, admin, "JT123456789012345")

	result, err := env.app.Export(ctx, admin, ExportRequest{
		DataType: "vehicles",
		Format:   ExportCSV,
		Columns:  []string{"vin", "make", "verificationState"},
	}, "203.0.113.9")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	body := string(result.Data)
	if !strings.HasPrefix(body, "vin,make,verificationState\n") {
		t.Fatalf("csv header wrong: %q", body)
	}
	if !strings.Contains(body, "JT123456789012345,Toyota,physical") {
		t.Fatalf("csv row missing: %q", body)
	}
	if result.RecordCount != 1 {
		t.Fatalf("record count = %d", result.RecordCount)
	}

	logs, err := env.app.ListExportLogs(ctx, 10)
	if err != nil {
		t.Fatalf("ListExportLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].IPAddress != "203.0.113.9" || logs[0].DataType != "vehicles" {
		t.Fatalf("export logs = %+v", logs)
	}
}

func TestExportExcelAndPDF(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "admin", "admin@example.com")

	xlsx, err := env.app.Export(ctx, admin, ExportRequest{DataType: "users", Format: ExportExcel}, "")
	if err != nil {
		t.Fatalf("excel export: %v", err)
	}
	// xlsx files are zip archives
	if len(xlsx.Data) < 4 || xlsx.Data[0] != 'P' || xlsx.Data[1] != 'K' {
		t.Fatal("excel export is not a zip archive")
	}

	pdfResult, err := env.app.Export(ctx, admin, ExportRequest{DataType: "users", Format: ExportPDF}, "")
	if err != nil {
		t.Fatalf("pdf export: %v", err)
	}
	if !strings.HasPrefix(string(pdfResult.Data), "%PDF") {
		t.Fatal("pdf export is not a pdf")
	}

	if _, err := env.app.Export(ctx, admin, ExportRequest{DataType: "users", Format: ExportCSV, Columns: []string{"nope"}}, ""); err == nil {
		t.Fatal("expected unknown column to fail")
	}
}

func TestBidsExportCSV(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "admin", "admin@example.com")
	owner := env.register(t, "alice", "alice@example.com")
	bidder := env.register(t, "bob", "bob@example.com")
	vehicle := env.listedVehicle(t, owner, admin, "JT123456789012345")

	if _, err := env.app.PlaceBid(ctx, bidder, vehicle.ID, 14500, ""); err != nil {
		t.Fatalf("PlaceBid: %v", err)
	}

	result, err := env.app.Export(ctx, admin, ExportRequest{
		DataType: "bids",
		Format:   ExportCSV,
		Columns:  []string{"vehicleId", "amount", "status"},
	}, "")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	body := string(result.Data)
	if !strings.Contains(body, vehicle.ID+",14500.00,pending") {
		t.Fatalf("csv row missing: %q", body)
	}
}

func TestAdminDisablesUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "admin", "admin@example.com")
	user := env.register(t, "alice", "alice@example.com")

	if _, err := env.app.SetUserStatus(ctx, admin, admin.ID, domain.StatusDisabled); err != ErrForbidden {
		t.Fatalf("self-disable err = %v, want ErrForbidden", err)
	}

	updated, err := env.app.SetUserStatus(ctx, admin, user.ID, domain.StatusDisabled)
	if err != nil {
		t.Fatalf("SetUserStatus: %v", err)
	}
	if updated.Status != domain.StatusDisabled {
		t.Fatalf("status = %q", updated.Status)
	}

	if _, _, err := env.app.Login(ctx, "alice@example.com", "hunter22pass"); err != ErrForbidden {
		t.Fatalf("disabled login err = %v, want ErrForbidden", err)
	}

	if _, err := env.app.SetUserStatus(ctx, admin, user.ID, domain.StatusActive); err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if _, _, err := env.app.Login(ctx, "alice@example.com", "hunter22pass"); err != nil {
		t.Fatalf("re-enabled login: %v", err)
	}
}

func TestVehicleImagesStoredAndRemoved(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin", "admin@example.com")
	owner := env.register(t, "alice", "alice@example.com")

	vehicle, err := env.app.CreateVehicle(ctx, owner, marketplaceInput("JT123456789012345"))
	if err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}
	img, err := env.app.AddVehicleImage(ctx, owner, vehicle.ID, "front.jpg", "image/jpeg", []byte("jpegdata"))
	if err != nil {
		t.Fatalf("AddVehicleImage: %v", err)
	}
	if _, ok := env.objects.Get(img.StorageKey); !ok {
		t.Fatal("image bytes not stored")
	}
	if err := env.app.DeleteVehicleImage(ctx, owner, vehicle.ID, img.ID); err != nil {
		t.Fatalf("DeleteVehicleImage: %v", err)
	}
	if _, ok := env.objects.Get(img.StorageKey); ok {
		t.Fatal("image bytes survived delete")
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "admin", "admin@example.com")
	owner := env.register(t, "alice", "alice@example.com")
	env.listedVehicle(t, owner, admin, "JT123456789012345")
	if _, err := env.app.CreateVehicle(ctx, owner, marketplaceInput("JT000000000000001")); err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}

	stats, err := env.app.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalUsers != 2 {
		t.Fatalf("TotalUsers = %d", stats.TotalUsers)
	}
	if stats.VehiclesByState[domain.VerificationPhysical] != 1 ||
		stats.VehiclesByState[domain.VerificationPending] != 1 {
		t.Fatalf("VehiclesByState = %+v", stats.VehiclesByState)
	}
}

func asFieldErrors(err error, target *domain.FieldErrors) bool {
	fields, ok := err.(domain.FieldErrors)
	if ok {
		*target = fields
	}
	return ok
}
