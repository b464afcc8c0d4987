// Package identity maintains the persistent pool of synthetic voter
// identities. The pool grows lazily to whatever size a row's vote count
// requires and is never shrunk; identities are reused across runs.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/lifenautjoe/userfeed-canny-importer/internal/state"
)

const poolFileName = "voter-pool.json"

// Voter is one synthetic identity: a board-service handle plus the email
// and display name it was registered with.
type Voter struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Registrar creates (or re-resolves) an identity on the board service.
// Upserts are keyed by email, so re-registering an existing voter is safe.
type Registrar interface {
	Register(ctx context.Context, email, displayName string) (id string, err error)
}

// Pool is the persistent voter set.
type Pool struct {
	dir         string
	emailDomain string
	registrar   Registrar
	voters      []Voter
}

// Load reads the pool document under dir, or starts empty if none exists.
func Load(dir, emailDomain string, registrar Registrar) (*Pool, error) {
	p := &Pool{dir: dir, emailDomain: emailDomain, registrar: registrar}

	data, err := os.ReadFile(p.path()) // #nosec G304 - controlled path from config
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading voter pool: %w", err)
	}
	if err := json.Unmarshal(data, &p.voters); err != nil {
		return nil, fmt.Errorf("parsing voter pool: %w", err)
	}
	return p, nil
}

func (p *Pool) path() string {
	return filepath.Join(p.dir, poolFileName)
}

// Size returns the current number of voters.
func (p *Pool) Size() int {
	return len(p.voters)
}

// Voters returns the pool in its stable persisted order. The slice is
// shared; callers must not mutate it.
func (p *Pool) Voters() []Voter {
	return p.voters
}

// EnsureSize grows the pool until it holds at least n voters, registering
// each new identity remotely and persisting the document after the growth
// batch. Growing to a size the pool already meets is a no-op.
func (p *Pool) EnsureSize(ctx context.Context, n int) error {
	if len(p.voters) >= n {
		return nil
	}

	for len(p.voters) < n {
		voter := newVoter(p.emailDomain)
		id, err := p.registrar.Register(ctx, voter.Email, voter.DisplayName)
		if err != nil {
			return fmt.Errorf("registering voter %s: %w", voter.Email, err)
		}
		voter.ID = id
		p.voters = append(p.voters, voter)
	}

	if err := p.save(); err != nil {
		return fmt.Errorf("persisting voter pool: %w", err)
	}
	return nil
}

func (p *Pool) save() error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	data, err := json.MarshalIndent(p.voters, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling voter pool: %w", err)
	}
	return state.WriteFileAtomic(p.path(), data)
}

// newVoter fabricates a fresh identity. The uuid fragment keeps emails
// unique within the configured domain.
func newVoter(domain string) Voter {
	tag := strings.Split(uuid.NewString(), "-")[0]
	first := firstNames[int(tag[0])%len(firstNames)]
	last := lastNames[int(tag[1])%len(lastNames)]
	return Voter{
		Email:       fmt.Sprintf("%s.%s.%s@%s", strings.ToLower(first), strings.ToLower(last), tag, domain),
		DisplayName: first + " " + last,
	}
}

var firstNames = []string{
	"Alex", "Jordan", "Sam", "Casey", "Morgan", "Riley", "Taylor", "Avery",
	"Quinn", "Dana", "Jamie", "Robin", "Drew", "Skyler", "Reese", "Kendall",
}

var lastNames = []string{
	"Reed", "Hayes", "Brooks", "Lane", "Parker", "Ellis", "Monroe", "Blake",
	"Hartley", "Sutton", "Mercer", "Dalton", "Ramsey", "Holloway", "Kerr", "Vance",
}
