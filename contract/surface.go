package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Write methods
const (
	MethodAddFarmer     = "addFarmer"
	MethodCreateProject = "createProject"
	MethodInvest        = "invest"
	MethodFinishProject = "finishProject"
	MethodClaimWithdraw = "claimWithdraw"
	MethodRefundProject = "refundProject"
	MethodClaimRefund   = "claimRefund"
	MethodCloseProject  = "closeProject"
)

// Read methods
const (
	MethodGetContribution  = "getContribution"
	MethodGetProfitPool    = "getProfitPool"
	MethodGetClaimedProfit = "getClaimedProfit"
	MethodTokenURI         = "tokenURI"
)

// Events
const (
	EventProjectCreated       = "ProjectCreated"
	EventFarmerAdded          = "FarmerAdded"
	EventInvested             = "Invested"
	EventProjectStatusChanged = "ProjectStatusChanged"
	EventProfitClaimed        = "ProfitClaimed"
	EventRefunded             = "Refunded"
)

// Event arguments read by workflows
const (
	ArgIDToken        = "idToken"
	ArgIDProject      = "idProject"
	ArgReceiptTokenID = "receiptTokenId"
	ArgAmount         = "amount"
)

// SyncedEvents is the fixed set of events replayed by historical sync.
var SyncedEvents = []string{
	EventProjectCreated,
	EventFarmerAdded,
	EventInvested,
	EventProjectStatusChanged,
	EventProfitClaimed,
	EventRefunded,
}

// ErrABIMismatch reports a deployed ABI that lacks part of the bound surface.
var ErrABIMismatch = errors.New("abi does not match the StomaTrade interface")

type methodSig struct {
	name   string
	inputs []string
}

type eventSig struct {
	name string
	args []string
}

var requiredMethods = []methodSig{
	{MethodAddFarmer, []string{"string", "string", "string", "uint256", "string"}},
	{MethodCreateProject, []string{"uint256", "uint256", "string"}},
	{MethodInvest, []string{"uint256", "uint256"}},
	{MethodFinishProject, []string{"uint256", "uint256"}},
	{MethodClaimWithdraw, []string{"uint256"}},
	{MethodRefundProject, []string{"uint256"}},
	{MethodClaimRefund, []string{"uint256"}},
	{MethodCloseProject, []string{"uint256"}},
	{MethodGetContribution, []string{"uint256", "address"}},
	{MethodGetProfitPool, []string{"uint256"}},
	{MethodGetClaimedProfit, []string{"uint256", "address"}},
	{MethodTokenURI, []string{"uint256"}},
}

var requiredEvents = []eventSig{
	{EventFarmerAdded, []string{ArgIDToken}},
	{EventProjectCreated, []string{ArgIDProject}},
	{EventInvested, []string{ArgIDProject, ArgAmount, ArgReceiptTokenID}},
	{EventProjectStatusChanged, []string{ArgIDProject}},
	{EventProfitClaimed, []string{ArgIDProject, ArgAmount}},
	{EventRefunded, []string{ArgIDProject, ArgAmount}},
}

// ValidateSurface checks that parsed exposes every method and event the
// typed binding relies on, with matching input types.
func ValidateSurface(parsed *abi.ABI) error {
	var problems []string

	for _, want := range requiredMethods {
		m, ok := parsed.Methods[want.name]
		if !ok {
			problems = append(problems, "missing method "+want.name)
			continue
		}
		if got := argTypes(m.Inputs); strings.Join(got, ",") != strings.Join(want.inputs, ",") {
			problems = append(problems, fmt.Sprintf("method %s(%s), want (%s)",
				want.name, strings.Join(got, ","), strings.Join(want.inputs, ",")))
		}
	}

	for _, want := range requiredEvents {
		ev, ok := parsed.Events[want.name]
		if !ok {
			problems = append(problems, "missing event "+want.name)
			continue
		}
		for _, arg := range want.args {
			if !hasArg(ev.Inputs, arg) {
				problems = append(problems, fmt.Sprintf("event %s lacks argument %s", want.name, arg))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrABIMismatch, strings.Join(problems, "; "))
	}
	return nil
}

func argTypes(args abi.Arguments) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = a.Type.String()
	}
	return out
}

func hasArg(args abi.Arguments, name string) bool {
	for _, a := range args {
		if a.Name == name {
			return true
		}
	}
	return false
}
