package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/brojonat/solanapredict/service/idl"
	"github.com/brojonat/solanapredict/service/program"
	"github.com/brojonat/solanapredict/service/solana"
	"github.com/brojonat/solanapredict/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB - plenty for a question and description
	maxAddressLength   = 100     // Solana addresses are 44 chars, give buffer
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// handleConnectSession returns a handler that connects a wallet to the caller's session.
// POST /api/v1/session
func handleConnectSession(sessions *SessionStore, conn *solana.Connection, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			PublicKey string `json:"public_key"`
		}
		if !decodeBody(w, r, &req, logger) {
			return
		}

		if err := validateAddress(req.PublicKey); err != nil {
			logger.Debug("invalid public key", "public_key", req.PublicKey, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		wal, err := wallet.ParseReadOnlyWallet(req.PublicKey)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		sess := sessions.FromRequest(w, r, true)
		status := sessions.Connect(r.Context(), sess, wal, conn)

		writeJSON(w, sessionResponse{SessionID: sess.ID, Status: status}, http.StatusOK)
	})
}

// handleDisconnectSession returns a handler that drops the session's wallet.
// DELETE /api/v1/session
func handleDisconnectSession(sessions *SessionStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := sessions.FromRequest(w, r, false); sess != nil {
			sessions.Disconnect(r.Context(), sess)
			logger.Debug("session disconnected", "session_id", sess.ID)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// handleProgramStatus returns a handler that reports whether the session has a
// program client.
// GET /api/v1/program
func handleProgramStatus(sessions *SessionStore, conn *solana.Connection) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessions.FromRequest(w, r, false)
		if sess == nil {
			writeJSON(w, program.Status{Ready: false}, http.StatusOK)
			return
		}
		writeJSON(w, sess.Status(conn), http.StatusOK)
	})
}

// handleListMarkets returns a handler that lists every market of the program.
// GET /api/v1/markets
func handleListMarkets(sessions *SessionStore, conn *solana.Connection, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prog, ok := requireProgram(w, r, sessions, conn)
		if !ok {
			return
		}

		markets, err := prog.ListMarkets(r.Context())
		if err != nil {
			logger.Error("failed to list markets", "error", err)
			writeError(w, "failed to list markets", errorStatus(err))
			return
		}

		resp := make([]marketResponse, len(markets))
		for i, m := range markets {
			resp[i] = toMarketResponse(m.Address, m.Market, time.Now())
		}

		writeJSON(w, map[string]interface{}{
			"markets": resp,
			"count":   len(resp),
		}, http.StatusOK)
	})
}

// handleGetMarket returns a handler that fetches one market and the caller's bet on it.
// GET /api/v1/markets/{address}
func handleGetMarket(sessions *SessionStore, conn *solana.Connection, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address, err := parseAddress(r.PathValue("address"))
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		prog, ok := requireProgram(w, r, sessions, conn)
		if !ok {
			return
		}

		market, err := prog.FetchMarket(r.Context(), address)
		if err != nil {
			logger.Debug("failed to fetch market", "address", address.String(), "error", err)
			writeError(w, err.Error(), errorStatus(err))
			return
		}

		resp := toMarketResponse(address, market, time.Now())
		betAddr, bet, err := prog.FetchMyBet(r.Context(), address)
		switch {
		case err == nil:
			resp.MyBet = &betResponse{Address: betAddr.String(), Bet: bet}
		case errors.Is(err, solana.ErrAccountNotFound):
		default:
			logger.Warn("failed to fetch bet", "market", address.String(), "error", err)
		}

		writeJSON(w, resp, http.StatusOK)
	})
}

// handleBuildTransaction returns a handler that builds an unsigned transaction
// for the session wallet to sign and submit.
// POST /api/v1/transactions/{instruction}
func handleBuildTransaction(sessions *SessionStore, conn *solana.Connection, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		prog, ok := requireProgram(w, r, sessions, conn)
		if !ok {
			return
		}

		name := idl.SnakeCase(r.PathValue("instruction"))
		var (
			ix      solanago.Instruction
			derived solanago.PublicKey
			err     error
		)

		switch name {
		case "create_market":
			var req createMarketRequest
			if !decodeBody(w, r, &req, logger) {
				return
			}
			ix, derived, err = prog.CreateMarket(program.CreateMarketArgs{
				Question:    req.Question,
				Description: req.Description,
				EndTime:     req.EndTime,
			})

		case "place_bet":
			var req placeBetRequest
			if !decodeBody(w, r, &req, logger) {
				return
			}
			market, perr := parseAddress(req.Market)
			if perr != nil {
				writeError(w, perr.Error(), http.StatusBadRequest)
				return
			}
			ix, derived, err = prog.PlaceBet(market, req.Amount, req.Option)

		case "resolve_market":
			var req resolveMarketRequest
			if !decodeBody(w, r, &req, logger) {
				return
			}
			market, perr := parseAddress(req.Market)
			if perr != nil {
				writeError(w, perr.Error(), http.StatusBadRequest)
				return
			}
			ix, err = prog.ResolveMarket(market, req.WinningOption)

		case "claim_winnings":
			var req claimWinningsRequest
			if !decodeBody(w, r, &req, logger) {
				return
			}
			market, perr := parseAddress(req.Market)
			if perr != nil {
				writeError(w, perr.Error(), http.StatusBadRequest)
				return
			}
			ix, err = prog.ClaimWinnings(market)

		default:
			writeError(w, fmt.Sprintf("unknown instruction %q", r.PathValue("instruction")), http.StatusNotFound)
			return
		}

		if err != nil {
			logger.Debug("instruction rejected", "instruction", name, "error", err)
			writeError(w, err.Error(), errorStatus(err))
			return
		}

		tx, err := prog.Provider().BuildTransaction(r.Context(), ix)
		if err != nil {
			logger.Error("failed to build transaction", "instruction", name, "error", err)
			writeError(w, "failed to build transaction", errorStatus(err))
			return
		}

		raw, err := tx.MarshalBinary()
		if err != nil {
			logger.Error("failed to serialize transaction", "instruction", name, "error", err)
			writeError(w, "failed to serialize transaction", http.StatusInternalServerError)
			return
		}

		resp := transactionResponse{
			Instruction:     name,
			Transaction:     base64.StdEncoding.EncodeToString(raw),
			Signer:          prog.Provider().PublicKey().String(),
			RecentBlockhash: tx.Message.RecentBlockhash.String(),
		}
		if !derived.IsZero() {
			resp.Address = derived.String()
		}

		logger.Info("unsigned transaction built",
			"instruction", name,
			"signer", resp.Signer,
			"address", resp.Address,
		)
		writeJSON(w, resp, http.StatusOK)
	})
}

type sessionResponse struct {
	SessionID string         `json:"session_id"`
	Status    program.Status `json:"status"`
}

type marketResponse struct {
	Address string `json:"address"`
	*program.Market
	TotalPool uint64       `json:"total_pool"`
	Ended     bool         `json:"ended"`
	MyBet     *betResponse `json:"my_bet,omitempty"`
}

type betResponse struct {
	Address string `json:"address"`
	*program.Bet
}

func toMarketResponse(address solanago.PublicKey, m *program.Market, now time.Time) marketResponse {
	return marketResponse{
		Address:   address.String(),
		Market:    m,
		TotalPool: m.TotalPool(),
		Ended:     m.Ended(now),
	}
}

type createMarketRequest struct {
	Question    string    `json:"question"`
	Description string    `json:"description"`
	EndTime     time.Time `json:"end_time"`
}

type placeBetRequest struct {
	Market string            `json:"market"`
	Amount uint64            `json:"amount"`
	Option program.BetOption `json:"option"`
}

type resolveMarketRequest struct {
	Market        string            `json:"market"`
	WinningOption program.BetOption `json:"winning_option"`
}

type claimWinningsRequest struct {
	Market string `json:"market"`
}

type transactionResponse struct {
	Instruction     string `json:"instruction"`
	Transaction     string `json:"transaction"`
	Signer          string `json:"signer"`
	RecentBlockhash string `json:"recent_blockhash"`
	Address         string `json:"address,omitempty"`
}

// requireProgram resolves the session's program client, writing a 401 when
// no wallet is connected.
func requireProgram(w http.ResponseWriter, r *http.Request, sessions *SessionStore, conn *solana.Connection) (*program.Program, bool) {
	sess := sessions.FromRequest(w, r, false)
	if sess == nil {
		writeError(w, program.ErrWalletNotConnected.Error(), http.StatusUnauthorized)
		return nil, false
	}
	_, prog := sess.Bind(conn)
	if prog == nil {
		writeError(w, program.ErrWalletNotConnected.Error(), http.StatusUnauthorized)
		return nil, false
	}
	return prog, true
}

// decodeBody decodes a JSON request body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}, logger *slog.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Debug("failed to decode request", "path", r.URL.Path, "error", err)
		if strings.Contains(err.Error(), "http: request body too large") {
			writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
			return false
		}
		if errors.Is(err, program.ErrInvalidBetOption) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return false
		}
		writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// errorStatus maps domain errors to HTTP status codes. Anything unrecognised
// came from the cluster.
func errorStatus(err error) int {
	var progErr *program.ProgramError
	switch {
	case errors.Is(err, program.ErrQuestionTooLong),
		errors.Is(err, program.ErrDescriptionTooLong),
		errors.Is(err, program.ErrInvalidEndTime),
		errors.Is(err, program.ErrInvalidAmount),
		errors.Is(err, program.ErrInvalidBetOption):
		return http.StatusBadRequest
	case errors.Is(err, program.ErrWalletNotConnected):
		return http.StatusUnauthorized
	case errors.Is(err, idl.ErrInstructionNotFound),
		errors.Is(err, solana.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, program.ErrUnexpectedAccount):
		return http.StatusUnprocessableEntity
	case errors.As(err, &progErr):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates a base58 address for safety and format.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	// Check for null bytes and control characters
	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	return nil
}

// parseAddress validates and decodes a base58 public key.
func parseAddress(address string) (solanago.PublicKey, error) {
	if err := validateAddress(address); err != nil {
		return solanago.PublicKey{}, err
	}
	key, err := solanago.PublicKeyFromBase58(address)
	if err != nil {
		return solanago.PublicKey{}, errorf("invalid address: %v", err)
	}
	return key, nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
