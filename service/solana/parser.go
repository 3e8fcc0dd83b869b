package solana

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

var (
	// "custom program error: 0x1770" from preflight simulation messages.
	customErrorHexRegex = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)

	// "Error Number: 6000." from Anchor program logs.
	anchorErrorNumberRegex = regexp.MustCompile(`Error Number: (\d+)`)
)

// ParseCustomErrorCode extracts a program's custom error code from an error
// returned by SendTransaction. It looks at the error message and, for JSON-RPC
// errors, at the simulation data (logs and err).
func ParseCustomErrorCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}

	if code, ok := parseCustomErrorText(err.Error()); ok {
		return code, true
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Data != nil {
		if data, ok := rpcErr.Data.(map[string]interface{}); ok {
			if _, code, ok := ParseInstructionError(data["err"]); ok {
				return code, true
			}
			if logs, ok := data["logs"].([]interface{}); ok {
				for _, line := range logs {
					if s, ok := line.(string); ok {
						if code, ok := parseCustomErrorText(s); ok {
							return code, true
						}
					}
				}
			}
		}
		if code, ok := parseCustomErrorText(fmt.Sprint(rpcErr.Data)); ok {
			return code, true
		}
	}

	return 0, false
}

func parseCustomErrorText(s string) (int, bool) {
	if m := customErrorHexRegex.FindStringSubmatch(s); m != nil {
		code, err := strconv.ParseInt(m[1], 16, 64)
		if err == nil {
			return int(code), true
		}
	}
	if m := anchorErrorNumberRegex.FindStringSubmatch(s); m != nil {
		code, err := strconv.Atoi(m[1])
		if err == nil {
			return code, true
		}
	}
	return 0, false
}

// ParseInstructionError decodes a transaction error of the form
// {"InstructionError": [index, {"Custom": code}]} as found in signature
// statuses and simulation results.
func ParseInstructionError(txErr interface{}) (index int, code int, ok bool) {
	m, isMap := txErr.(map[string]interface{})
	if !isMap {
		return 0, 0, false
	}
	pair, isSlice := m["InstructionError"].([]interface{})
	if !isSlice || len(pair) != 2 {
		return 0, 0, false
	}
	idx, ok := toInt(pair[0])
	if !ok {
		return 0, 0, false
	}
	detail, isMap := pair[1].(map[string]interface{})
	if !isMap {
		return 0, 0, false
	}
	code, ok = toInt(detail["Custom"])
	if !ok {
		return 0, 0, false
	}
	return idx, code, true
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
