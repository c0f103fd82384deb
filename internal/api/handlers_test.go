package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yield-ledger/internal/ledger"
	"github.com/yield-ledger/internal/service"
	"github.com/yield-ledger/internal/types"
)

// fakeYieldService implements YieldServiceInterface with canned responses
type fakeYieldService struct {
	snapshot     types.SnapshotSummary
	reserve      types.ReserveView
	distribution types.DistributionView
	payout       *types.PayoutResult
	claimAmount  uint64
	claimable    uint64
	err          error

	lastCaller common.Address
	lastID     uint64
}

func (f *fakeYieldService) TakeSnapshot(ctx context.Context, caller common.Address) (types.SnapshotSummary, error) {
	f.lastCaller = caller
	return f.snapshot, f.err
}

func (f *fakeYieldService) AddHolders(ctx context.Context, caller common.Address, holders []common.Address, balances []uint64) (types.SnapshotSummary, error) {
	f.lastCaller = caller
	return f.snapshot, f.err
}

func (f *fakeYieldService) ValidateSnapshot(ctx context.Context, caller common.Address) (types.SnapshotSummary, error) {
	f.lastCaller = caller
	return f.snapshot, f.err
}

func (f *fakeYieldService) CurrentSnapshot(ctx context.Context) types.SnapshotSummary {
	return f.snapshot
}

func (f *fakeYieldService) Deposit(ctx context.Context, caller common.Address, label string, amount uint64) (types.ReserveView, error) {
	f.lastCaller = caller
	return f.reserve, f.err
}

func (f *fakeYieldService) WithdrawReserve(ctx context.Context, caller common.Address, amount uint64) (types.ReserveView, error) {
	f.lastCaller = caller
	return f.reserve, f.err
}

func (f *fakeYieldService) Reserve(ctx context.Context) types.ReserveView {
	return f.reserve
}

func (f *fakeYieldService) CreateDistribution(ctx context.Context, caller common.Address, amount uint64) (types.DistributionView, error) {
	f.lastCaller = caller
	return f.distribution, f.err
}

func (f *fakeYieldService) Payout(ctx context.Context, caller common.Address, id uint64) (*types.PayoutResult, error) {
	f.lastCaller = caller
	f.lastID = id
	return f.payout, f.err
}

func (f *fakeYieldService) GetDistribution(ctx context.Context, id uint64) (types.DistributionView, error) {
	f.lastID = id
	return f.distribution, f.err
}

func (f *fakeYieldService) Claim(ctx context.Context, caller common.Address, id uint64) (uint64, error) {
	f.lastCaller = caller
	f.lastID = id
	return f.claimAmount, f.err
}

func (f *fakeYieldService) Claimable(ctx context.Context, holder common.Address) uint64 {
	return f.claimable
}

// fakeStakeService implements StakeServiceInterface with canned responses
type fakeStakeService struct {
	summary types.StakeSummary
	payout  uint64
	rewards uint64
	config  service.StakingConfig
	err     error

	lastCaller common.Address
}

func (f *fakeStakeService) Stake(ctx context.Context, caller common.Address, amount uint64) (types.StakeSummary, error) {
	f.lastCaller = caller
	return f.summary, f.err
}

func (f *fakeStakeService) Unstake(ctx context.Context, caller common.Address) (uint64, error) {
	f.lastCaller = caller
	return f.payout, f.err
}

func (f *fakeStakeService) ClaimRewards(ctx context.Context, caller common.Address) (uint64, error) {
	f.lastCaller = caller
	return f.rewards, f.err
}

func (f *fakeStakeService) Summary(ctx context.Context, holder common.Address) types.StakeSummary {
	return f.summary
}

func (f *fakeStakeService) Config(ctx context.Context) service.StakingConfig {
	return f.config
}

func (f *fakeStakeService) UpdateConfig(ctx context.Context, caller common.Address, apy *uint64, lockPeriod *time.Duration, paused *bool) (service.StakingConfig, error) {
	f.lastCaller = caller
	return f.config, f.err
}

func newTestServer(yield *fakeYieldService, stake *fakeStakeService) *Server {
	return NewServer(&ServerConfig{
		Host:              "127.0.0.1",
		Port:              "0",
		ReadTimeout:       time.Second,
		WriteTimeout:      time.Second,
		IdleTimeout:       time.Second,
		RequestsPerMinute: 6000,
		Burst:             100,
	}, yield, stake)
}

const (
	testAdmin  = "0x00000000000000000000000000000000000000aa"
	testHolder = "0x0000000000000000000000000000000000000001"
)

func doRequest(t *testing.T, srv *Server, method, path string, headers map[string]string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ServiceError {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v (body %q)", err, rec.Body.String())
	}
	return resp.Error
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&fakeYieldService{}, &fakeStakeService{})

	rec := doRequest(t, srv, "GET", "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %q, want healthy", body["status"])
	}
}

func TestAdminHeaderRequired(t *testing.T) {
	srv := newTestServer(&fakeYieldService{}, &fakeStakeService{})

	tests := []struct {
		method string
		path   string
	}{
		{"POST", "/api/snapshots"},
		{"POST", "/api/snapshots/holders"},
		{"POST", "/api/snapshots/validate"},
		{"POST", "/api/reserve/deposits"},
		{"POST", "/api/reserve/withdrawals"},
		{"POST", "/api/distributions"},
		{"POST", "/api/distributions/1/payout"},
		{"PUT", "/api/staking/config"},
	}

	for _, tt := range tests {
		rec := doRequest(t, srv, tt.method, tt.path, nil, map[string]interface{}{})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without admin header: status = %d, want 401", tt.method, tt.path, rec.Code)
		}
	}
}

func TestInvalidAddressHeaderRejected(t *testing.T) {
	srv := newTestServer(&fakeYieldService{}, &fakeStakeService{})

	rec := doRequest(t, srv, "POST", "/api/snapshots",
		map[string]string{HeaderAdminAddress: "not-an-address"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if svcErr := decodeError(t, rec); svcErr.Code != "INVALID_ADDRESS" {
		t.Errorf("error code = %q, want INVALID_ADDRESS", svcErr.Code)
	}
}

func TestTakeSnapshot(t *testing.T) {
	yield := &fakeYieldService{
		snapshot: types.SnapshotSummary{TotalSupply: 1000, Active: true},
	}
	srv := newTestServer(yield, &fakeStakeService{})

	rec := doRequest(t, srv, "POST", "/api/snapshots",
		map[string]string{HeaderAdminAddress: testAdmin}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %q)", rec.Code, rec.Body.String())
	}

	var summary types.SnapshotSummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatal(err)
	}
	if summary.TotalSupply != 1000 || !summary.Active {
		t.Errorf("summary = %+v", summary)
	}
	if yield.lastCaller != common.HexToAddress(testAdmin) {
		t.Errorf("caller = %s, want %s", yield.lastCaller.Hex(), testAdmin)
	}
}

func TestAddHoldersRejectsBadAddress(t *testing.T) {
	srv := newTestServer(&fakeYieldService{}, &fakeStakeService{})

	rec := doRequest(t, srv, "POST", "/api/snapshots/holders",
		map[string]string{HeaderAdminAddress: testAdmin},
		addHoldersRequest{Holders: []string{"garbage"}, Balances: []uint64{1}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetDistributionInvalidID(t *testing.T) {
	srv := newTestServer(&fakeYieldService{}, &fakeStakeService{})

	rec := doRequest(t, srv, "GET", "/api/distributions/abc", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if svcErr := decodeError(t, rec); svcErr.Code != "INVALID_PARAMETER" {
		t.Errorf("error code = %q, want INVALID_PARAMETER", svcErr.Code)
	}
}

func TestGetDistributionNotFound(t *testing.T) {
	yield := &fakeYieldService{
		err: &types.ServiceError{Code: ledger.CodeUnknownDistribution, Message: "unknown distribution 7"},
	}
	srv := newTestServer(yield, &fakeStakeService{})

	rec := doRequest(t, srv, "GET", "/api/distributions/7", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (body %q)", rec.Code, rec.Body.String())
	}
	if svcErr := decodeError(t, rec); svcErr.Code != ledger.CodeUnknownDistribution {
		t.Errorf("error code = %q, want %s", svcErr.Code, ledger.CodeUnknownDistribution)
	}
}

func TestClaimUsesCallerHeader(t *testing.T) {
	yield := &fakeYieldService{claimAmount: 42}
	srv := newTestServer(yield, &fakeStakeService{})

	rec := doRequest(t, srv, "POST", "/api/distributions/3/claims",
		map[string]string{HeaderCallerAddress: testHolder}, map[string]interface{}{})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["amount"].(float64) != 42 {
		t.Errorf("amount = %v, want 42", body["amount"])
	}
	if yield.lastID != 3 {
		t.Errorf("distribution id = %d, want 3", yield.lastID)
	}
	if yield.lastCaller != common.HexToAddress(testHolder) {
		t.Errorf("caller = %s, want %s", yield.lastCaller.Hex(), testHolder)
	}
}

func TestClaimAlreadyClaimedConflict(t *testing.T) {
	yield := &fakeYieldService{
		err: &types.ServiceError{Code: ledger.CodeAlreadyClaimed, Message: "share already claimed"},
	}
	srv := newTestServer(yield, &fakeStakeService{})

	rec := doRequest(t, srv, "POST", "/api/distributions/3/claims",
		map[string]string{HeaderCallerAddress: testHolder}, map[string]interface{}{})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestClaimable(t *testing.T) {
	yield := &fakeYieldService{claimable: 75}
	srv := newTestServer(yield, &fakeStakeService{})

	rec := doRequest(t, srv, "GET", "/api/holders/"+testHolder+"/claimable", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["claimable"].(float64) != 75 {
		t.Errorf("claimable = %v, want 75", body["claimable"])
	}
}

func TestStakeWhilePausedConflict(t *testing.T) {
	stake := &fakeStakeService{
		err: &types.ServiceError{Code: ledger.CodeStakingPaused, Message: "staking is paused"},
	}
	srv := newTestServer(&fakeYieldService{}, stake)

	rec := doRequest(t, srv, "POST", "/api/stakes",
		map[string]string{HeaderCallerAddress: testHolder},
		stakeRequest{Amount: 100})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 (body %q)", rec.Code, rec.Body.String())
	}
}

func TestUpdateStakingConfig(t *testing.T) {
	stake := &fakeStakeService{
		config: service.StakingConfig{APYBasisPoints: 750, LockPeriod: "168h0m0s", Paused: false},
	}
	srv := newTestServer(&fakeYieldService{}, stake)

	lock := "168h"
	apy := uint64(750)
	rec := doRequest(t, srv, "PUT", "/api/staking/config",
		map[string]string{HeaderAdminAddress: testAdmin},
		updateStakingConfigRequest{APYBasisPoints: &apy, LockPeriod: &lock})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}

	var cfg service.StakingConfig
	if err := json.NewDecoder(rec.Body).Decode(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.APYBasisPoints != 750 {
		t.Errorf("apy = %d, want 750", cfg.APYBasisPoints)
	}
}

func TestUpdateStakingConfigBadDuration(t *testing.T) {
	srv := newTestServer(&fakeYieldService{}, &fakeStakeService{})

	bad := "soon"
	rec := doRequest(t, srv, "PUT", "/api/staking/config",
		map[string]string{HeaderAdminAddress: testAdmin},
		updateStakingConfigRequest{LockPeriod: &bad})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	srv := newTestServer(&fakeYieldService{}, &fakeStakeService{})

	rec := doRequest(t, srv, "POST", "/api/reserve/deposits",
		map[string]string{HeaderAdminAddress: testAdmin},
		map[string]interface{}{"label": "x", "amount": 1, "bogus": true})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	srv := NewServer(&ServerConfig{
		Host:              "127.0.0.1",
		Port:              "0",
		RequestsPerMinute: 60,
		Burst:             2,
	}, &fakeYieldService{}, &fakeStakeService{})

	var last int
	for i := 0; i < 5; i++ {
		rec := doRequest(t, srv, "GET", "/health",
			map[string]string{HeaderCallerAddress: testHolder}, nil)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("status after burst = %d, want 429", last)
	}
}
