package cloudsync

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	apperrors "github.com/dpshade/prompthive/internal/errors"
	"github.com/dpshade/prompthive/internal/remote"
)

// Classification is the derived sync state of one name.
type Classification int

const (
	Unknown Classification = iota
	Synced
	PendingPush
	PendingPull
	Conflict
	Error
)

func (c Classification) String() string {
	switch c {
	case Synced:
		return "synced"
	case PendingPush:
		return "pending-push"
	case PendingPull:
		return "pending-pull"
	case Conflict:
		return "conflict"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Mismatch reasons reported for conflicts.
const (
	ReasonContent     = "content"
	ReasonDescription = "description"
)

// Selection narrows a batch operation. The zero value selects everything.
// Names are exact names; Pattern is a doublestar glob over names
// (e.g. "essentials/**", "@team/*").
type Selection struct {
	Names   []string
	Pattern string
}

// All reports whether the selection is empty.
func (s Selection) All() bool {
	return len(s.Names) == 0 && s.Pattern == ""
}

// Validate rejects malformed glob patterns.
func (s Selection) Validate() error {
	if s.Pattern != "" && !doublestar.ValidatePattern(s.Pattern) {
		return apperrors.InvalidInputError(fmt.Sprintf("invalid pattern '%s'", s.Pattern))
	}
	return nil
}

// filter keeps the names matched by Pattern. Names are not consulted.
func (s Selection) filter(names []string) []string {
	if s.Pattern == "" {
		return names
	}
	out := names[:0:0]
	for _, n := range names {
		if ok, _ := doublestar.Match(s.Pattern, n); ok {
			out = append(out, n)
		}
	}
	return out
}

// ItemStatus is the classification of one name.
type ItemStatus struct {
	Name    string
	State   Classification
	Reasons []string
	Err     error
}

// StatusReport is the result of a status pass.
type StatusReport struct {
	Items []ItemStatus
}

// Count returns how many items have state c.
func (r StatusReport) Count(c Classification) int {
	n := 0
	for _, it := range r.Items {
		if it.State == c {
			n++
		}
	}
	return n
}

// Names returns the sorted names with state c.
func (r StatusReport) Names(c Classification) []string {
	var out []string
	for _, it := range r.Items {
		if it.State == c {
			out = append(out, it.Name)
		}
	}
	sort.Strings(out)
	return out
}

// NextSteps suggests commands that would move the report toward fully synced.
func (r StatusReport) NextSteps() []string {
	var steps []string
	if n := r.Count(Conflict); n > 0 {
		steps = append(steps, fmt.Sprintf("resolve %d conflict(s): prompthive sync resolve <name> --strategy local|cloud|manual", n))
	}
	if n := r.Count(PendingPush); n > 0 {
		steps = append(steps, fmt.Sprintf("upload %d local-only prompt(s): prompthive sync push", n))
	}
	if n := r.Count(PendingPull); n > 0 {
		steps = append(steps, fmt.Sprintf("download %d cloud-only prompt(s): prompthive sync pull", n))
	}
	if n := r.Count(Error); n > 0 {
		steps = append(steps, fmt.Sprintf("retry %d prompt(s) that could not be checked", n))
	}
	if len(steps) == 0 && len(r.Items) > 0 {
		steps = append(steps, "everything is in sync")
	}
	return steps
}

// PushItemResult is the server verdict on one pushed prompt.
type PushItemResult struct {
	Name   string
	Status remote.PushStatus
	Error  string
}

// PushReport summarizes a push.
type PushReport struct {
	Items        []PushItemResult
	Created      int
	Updated      int
	Conflicts    int
	Errors       int
	Unknown      int
	ServerErrors int
	Success      bool
	Message      string
}

// PullOutcome is what happened to one pulled name.
type PullOutcome int

const (
	PullCreated PullOutcome = iota
	PullUpdated
	PullUpToDate
	PullConflict
	PullMissing
	PullError
)

func (o PullOutcome) String() string {
	switch o {
	case PullCreated:
		return "created"
	case PullUpdated:
		return "updated"
	case PullUpToDate:
		return "up-to-date"
	case PullConflict:
		return "conflict"
	case PullMissing:
		return "missing"
	default:
		return "error"
	}
}

// PullItemResult is one pulled name.
type PullItemResult struct {
	Name    string
	Outcome PullOutcome
	Err     error
}

// PullReport summarizes a pull.
type PullReport struct {
	Items     []PullItemResult
	Pulled    int
	Updated   int
	UpToDate  int
	Conflicts int
	Missing   int
	Errors    int
}

// Strategy picks the winning side in Resolve.
type Strategy int

const (
	StrategyLocal Strategy = iota
	StrategyCloud
	StrategyManual
)

func (s Strategy) String() string {
	switch s {
	case StrategyLocal:
		return "local"
	case StrategyCloud:
		return "cloud"
	default:
		return "manual"
	}
}

// ParseStrategy maps "local", "cloud" (or "remote") and "manual" to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return StrategyLocal, nil
	case "cloud", "remote":
		return StrategyCloud, nil
	case "manual":
		return StrategyManual, nil
	}
	return 0, apperrors.InvalidInputError(fmt.Sprintf("unknown strategy '%s' (want local, cloud or manual)", s))
}

// ResolveResult describes a resolve call. Previews and Diff are set for
// the manual strategy only.
type ResolveResult struct {
	Name          string
	Strategy      Strategy
	Reasons       []string
	PushStatus    remote.PushStatus
	LocalPreview  string
	RemotePreview string
	Diff          string
}

// VerifyReport summarizes a read-only verification pass.
type VerifyReport struct {
	Items       []ItemStatus
	Total       int
	Verified    int
	Missing     int
	OutOfSync   int
	Errors      int
	SuccessRate int
}

// BidirectionalReport summarizes a full two-way sync.
type BidirectionalReport struct {
	Status     StatusReport
	Aborted    bool
	Pushed     int
	PushFailed int
	Pulled     int
	PullFailed int
}
