package router

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"podcred/internal/admin"
	"podcred/internal/auth"
	"podcred/internal/cache"
	"podcred/internal/chain"
	"podcred/internal/chain/chaintest"
	"podcred/internal/config"
	"podcred/internal/confirm"
	"podcred/internal/db"
	"podcred/internal/handlers"
	"podcred/internal/issuance"
	"podcred/internal/models"
	"podcred/internal/queries"
	"podcred/internal/status"
	"podcred/internal/verify"
	"podcred/pkg"
)

var (
	student    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	otherUni   = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	diplomaID  = common.HexToHash("0x01")
	diplomaHex = diplomaID.Hex()
)

type harness struct {
	fake    *chaintest.Fake
	cfg     config.Config
	ledger  *db.MemoryLedger
	tracker *confirm.Tracker
	handler http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.Config{
		FrontendBaseURL: "http://pod.test/",
		ExplorerTxURL:   "https://scan.test/tx/",
		Server:          config.Server{AllowedOrigins: []string{"*"}},
		Auth: config.Auth{
			JWTSecret:     "router-secret",
			SessionTTL:    time.Hour,
			NonceTTL:      time.Minute,
			MaxShareHours: 168,
		},
		Issuance: config.Issuance{
			SettleDelay:    time.Millisecond,
			PollInterval:   time.Millisecond,
			ReceiptTimeout: time.Second,
			StatusInterval: time.Millisecond,
		},
	}

	logger := zap.NewNop()
	fake := chaintest.New()
	store := cache.NewMemoryStore()
	q := queries.New(logger, fake, store)
	ledger := db.NewMemoryLedger()
	tracker := confirm.NewTracker(cfg.Issuance, logger, fake, ledger, q)
	issuer := issuance.NewIssuer(logger, fake)
	checker := status.NewChecker(logger, q)

	api := handlers.New(handlers.Deps{
		Logger:   logger,
		Config:   cfg,
		Writer:   fake,
		Queries:  q,
		Issuer:   issuer,
		Tracker:  tracker,
		Approver: admin.NewApprover(logger, issuer, tracker, checker),
		Checker:  checker,
		Verifier: verify.New(logger, fake),
		Ledger:   ledger,
		Auth:     auth.NewService(logger, store, []byte(cfg.Auth.JWTSecret), cfg.Auth.NonceTTL, cfg.Auth.SessionTTL),
	})

	h := &harness{
		fake:    fake,
		cfg:     cfg,
		ledger:  ledger,
		tracker: tracker,
		handler: RegisterRouter(api, cfg, logger),
	}
	t.Cleanup(tracker.Wait)
	return h
}

// approveSigner makes the operator wallet an approved university with the
// role.
func (h *harness) approveSigner() {
	h.fake.Universities[h.fake.SignerAddr] = chain.University{Name: "Operator University", Country: "NL", IsRegistered: true, IsApproved: true}
	h.fake.Roles[chaintest.UniversityRole][h.fake.SignerAddr] = true
}

func (h *harness) token(t *testing.T, addr common.Address) string {
	t.Helper()
	tok, err := pkg.CreateToken([]byte(h.cfg.Auth.JWTSecret), addr.Hex(), time.Hour)
	require.NoError(t, err)
	return tok
}

func (h *harness) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" && !strings.Contains(path, "/csv") {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok\n", rec.Body.String())
}

func TestVerifyRejectsMalformedIDWithoutRead(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/v1/verify/0x1234", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, verify.MsgInvalidID, decode(t, rec)["message"])
	require.Zero(t, h.fake.Reads())
}

func TestVerifyDiploma(t *testing.T) {
	h := newHarness(t)
	h.fake.Universities[otherUni] = chain.University{Name: "Delft", Country: "NL", IsRegistered: true, IsApproved: true}
	h.fake.Diplomas[diplomaID] = chain.DiplomaRecord{University: otherUni, Student: student, IssueDate: 1700000000, DiplomaHash: "diploma-1"}

	rec := h.do(t, http.MethodGet, "/api/v1/verify/"+diplomaHex, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "Verified", body["status"])
	result := body["result"].(map[string]any)
	require.Equal(t, "Delft", result["university"].(map[string]any)["name"])

	rec = h.do(t, http.MethodGet, "/api/v1/verify/"+common.HexToHash("0x02").Hex(), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	require.Equal(t, "Not_Verified", body["status"])
	require.Equal(t, verify.MsgNotVerified, body["message"])
}

func TestVerifyTokenReadFailures(t *testing.T) {
	h := newHarness(t)

	h.fake.ReadErr = errors.New("dial tcp: connection refused")
	rec := h.do(t, http.MethodGet, "/api/v1/verify/token/7", "", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, verify.MsgLookupFailed, decode(t, rec)["message"])

	h.fake.ReadErr = chain.ErrNotConfigured
	rec = h.do(t, http.MethodGet, "/api/v1/verify/token/7", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.fake.ReadErr = nil
	rec = h.do(t, http.MethodGet, "/api/v1/verify/token/7", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, verify.MsgTokenUnknown, decode(t, rec)["message"])
}

func TestIssueDiplomaTracksConfirmation(t *testing.T) {
	h := newHarness(t)
	h.approveSigner()

	rec := h.do(t, http.MethodPost, "/api/v1/diplomas",
		`{"student":"`+student.Hex()+`","diploma_hash":"diploma-abc"}`, h.token(t, h.fake.SignerAddr))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	body := decode(t, rec)
	sub := body["submission"].(map[string]any)
	hash := sub["tx_hash"].(string)
	require.Equal(t, "https://scan.test/tx/"+hash, body["explorer_url"])

	h.tracker.Wait()
	row, err := h.ledger.Get(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, models.TransactionConfirmed, row.Status)

	rec = h.do(t, http.MethodGet, "/api/v1/transactions/"+hash, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestIssueRequiresOperatorAndApproval(t *testing.T) {
	h := newHarness(t)
	body := `{"student":"` + student.Hex() + `","diploma_hash":"d"}`

	rec := h.do(t, http.MethodPost, "/api/v1/diplomas", body, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/diplomas", body, h.token(t, student))
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Approved in the registry but the role was never granted.
	h.fake.Universities[h.fake.SignerAddr] = chain.University{Name: "Operator", IsRegistered: true, IsApproved: true}
	rec = h.do(t, http.MethodPost, "/api/v1/diplomas", body, h.token(t, h.fake.SignerAddr))
	require.Equal(t, http.StatusForbidden, rec.Code)
	uni := decode(t, rec)["university"].(map[string]any)
	require.Equal(t, string(status.Pending), uni["state"])
	require.Equal(t, string(status.AwaitingRole), uni["reason"])

	require.Empty(t, h.fake.SentCalls())
}

func TestIssueBatchRejectsDuplicatesBeforeSending(t *testing.T) {
	h := newHarness(t)
	h.approveSigner()

	rec := h.do(t, http.MethodPost, "/api/v1/diplomas/batch",
		`{"students":["`+student.Hex()+`","0x`+strings.ToUpper(student.Hex()[2:])+`"],"diploma_hashes":["a","b"]}`,
		h.token(t, h.fake.SignerAddr))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, h.fake.SentCalls())
}

func TestIssueBatchCSV(t *testing.T) {
	h := newHarness(t)
	h.approveSigner()

	csv := "student,diploma_hash\n" +
		"0x0000000000000000000000000000000000000001,hash-1\n" +
		"\n" +
		"0x0000000000000000000000000000000000000002\n" +
		"0x0000000000000000000000000000000000000003,hash-3\n"

	req := httptest.NewRequest(http.MethodPost, "/api/v1/diplomas/batch/csv", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Authorization", "Bearer "+h.token(t, h.fake.SignerAddr))
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	entries := decode(t, rec)["entries"].([]any)
	require.Len(t, entries, 3)

	sent := h.fake.SentCalls()
	require.Len(t, sent, 1)
	require.Equal(t, "batchGenerateDiplomas", sent[0].Call.Method)
	primary, _ := issuance.BatchGas(3)
	require.Equal(t, primary.GasLimit, sent[0].Gas.GasLimit)
}

func TestAdminApproveGrantsRole(t *testing.T) {
	h := newHarness(t)
	h.fake.Roles[chaintest.AdminRole][h.fake.SignerAddr] = true
	h.fake.Universities[otherUni] = chain.University{Name: "Delft", Country: "NL", IsRegistered: true}
	h.fake.OnSend = func(f *chaintest.Fake, call chain.Call) {
		addr := call.Args[0].(common.Address)
		switch call.Method {
		case "approveUniversity":
			u := f.Universities[addr]
			u.IsApproved = true
			f.Universities[addr] = u
		case "grantUniversityRole":
			f.Roles[chaintest.UniversityRole][addr] = true
		}
	}

	path := "/api/v1/admin/universities/" + otherUni.Hex() + "/approve"

	rec := h.do(t, http.MethodPost, path, `{"grant_role":true}`, h.token(t, student))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, path, `{"grant_role":true}`, h.token(t, h.fake.SignerAddr))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	require.NotNil(t, body["role_grant"])
	require.Equal(t, string(status.Approved), body["status"].(map[string]any)["state"])
}

func TestListUniversitiesFilters(t *testing.T) {
	h := newHarness(t)
	h.fake.Universities[otherUni] = chain.University{Name: "Delft University of Technology", Country: "NL", IsRegistered: true}
	h.fake.Universities[student] = chain.University{Name: "Sorbonne", Country: "FR", IsRegistered: true, IsApproved: true}
	h.fake.Roles[chaintest.UniversityRole][student] = true

	rec := h.do(t, http.MethodGet, "/api/v1/universities?pending=true", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, decode(t, rec)["count"])

	rec = h.do(t, http.MethodGet, "/api/v1/universities?search=sorbone", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.EqualValues(t, 1, body["count"])
	first := body["universities"].([]any)[0].(map[string]any)
	require.Equal(t, "Sorbonne", first["university"].(map[string]any)["name"])
}

func TestShareLinkRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.fake.Diplomas[diplomaID] = chain.DiplomaRecord{University: otherUni, Student: student, DiplomaHash: "d"}

	path := "/api/v1/diplomas/" + diplomaHex + "/share"
	rec := h.do(t, http.MethodPost, path, `{"expires_in_hours":200}`, h.token(t, student))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, path, `{"expires_in_hours":"2"}`, h.token(t, otherUni))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, path, `{"expires_in_hours":2}`, h.token(t, student))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	require.True(t, strings.HasPrefix(body["shareable_url"].(string), "http://pod.test/verify/"+diplomaHex+"?token="))
	tok := body["token"].(string)

	rec = h.do(t, http.MethodGet, "/api/v1/shared/"+diplomaHex+"?token="+tok, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	require.Equal(t, "Verified", body["status"])
	require.NotEmpty(t, body["valid_until"])

	rec = h.do(t, http.MethodGet, "/api/v1/shared/"+common.HexToHash("0x02").Hex()+"?token="+tok, "", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/shared/"+diplomaHex+"?token=garbage", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWalletLogin(t *testing.T) {
	h := newHarness(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	rec := h.do(t, http.MethodPost, "/api/v1/auth/nonce", `{"address":"not-an-address"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/auth/nonce", `{"address":"`+addr.Hex()+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	message := decode(t, rec)["message"].(string)

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)

	rec = h.do(t, http.MethodPost, "/api/v1/auth/login",
		`{"address":"`+addr.Hex()+`","signature":"`+hexutil.Encode(sig)+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := decode(t, rec)["token"].(string)

	rec = h.do(t, http.MethodGet, "/api/v1/auth/me", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "student", body["account_type"])
	require.Equal(t, false, body["is_operator"])
}

func TestStudentDiplomas(t *testing.T) {
	h := newHarness(t)
	second := common.HexToHash("0x02")
	h.fake.Diplomas[diplomaID] = chain.DiplomaRecord{University: otherUni, Student: student, IsMinted: true, DiplomaHash: "a"}
	h.fake.Diplomas[second] = chain.DiplomaRecord{University: otherUni, Student: student, DiplomaHash: "b"}
	h.fake.Students[student] = []common.Hash{diplomaID, second}
	h.fake.Tokens[diplomaID] = big.NewInt(1)

	rec := h.do(t, http.MethodGet, "/api/v1/students/"+student.Hex()+"/diplomas", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)["diplomas"].([]any)
	require.Len(t, list, 2)
	require.Equal(t, true, list[0].(map[string]any)["minted"])
	require.Equal(t, "1", list[0].(map[string]any)["token_id"])
	require.Equal(t, false, list[1].(map[string]any)["minted"])
}

func TestMintRejectsAlreadyMinted(t *testing.T) {
	h := newHarness(t)
	h.fake.Diplomas[diplomaID] = chain.DiplomaRecord{Student: student, IsMinted: true}

	rec := h.do(t, http.MethodPost, "/api/v1/diplomas/"+diplomaHex+"/mint", "", h.token(t, h.fake.SignerAddr))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Empty(t, h.fake.SentCalls())

	fresh := common.HexToHash("0x03")
	rec = h.do(t, http.MethodPost, "/api/v1/diplomas/"+fresh.Hex()+"/mint", "", h.token(t, h.fake.SignerAddr))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Equal(t, "http://pod.test/verify/"+fresh.Hex(), decode(t, rec)["metadata_uri"])
}

func TestDiplomaQRCode(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/v1/diplomas/"+diplomaHex+"/qrcode", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
}
