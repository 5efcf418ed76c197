// Package node manages the identity of a SeqRelay process.
//
// A process has two identities:
//   - its PeerID, the small numeric id other peers address messages to, taken
//     from configuration;
//   - its InstanceID, a ULID generated on first start and kept in the data
//     directory. It tags events and log lines so that journals from different
//     runs of the same peer can be told apart.
//
// The package also hands out fresh ULIDs (NewID) for anything that needs a
// time-sortable unique id, such as event log entries.
package node

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/snehjoshi/seqrelay/internal/types"
)

const instanceFile = "instance_id"

// InstanceID is a ULID identifying one SeqRelay installation.
type InstanceID string

func (id InstanceID) String() string { return string(id) }

// Node is the identity of the running process.
type Node struct {
	peerID   types.PeerID
	instance InstanceID
	dataDir  string
}

// New returns the Node for peerID. The instance id is override when it is a
// valid ULID; "auto" or "" reads dataDir/instance_id, generating it first if
// needed.
func New(dataDir string, peerID types.PeerID, override string) (*Node, error) {
	if dataDir == "" {
		return nil, errors.New("node: dataDir must not be empty")
	}
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("node: create data dir: %w", err)
	}

	n := &Node{peerID: peerID, dataDir: dataDir}
	if override != "" && override != "auto" {
		if _, err := ulid.ParseStrict(override); err != nil {
			return nil, fmt.Errorf("node: invalid instance id %q: %w", override, err)
		}
		n.instance = InstanceID(override)
		return n, nil
	}

	id, err := readOrCreate(filepath.Join(dataDir, instanceFile))
	if err != nil {
		return nil, err
	}
	n.instance = id
	return n, nil
}

// PeerID returns the numeric id other peers address this process by.
func (n *Node) PeerID() types.PeerID { return n.peerID }

// Instance returns the persistent ULID of this installation.
func (n *Node) Instance() InstanceID { return n.instance }

// DataDir returns the root data directory.
func (n *Node) DataDir() string { return n.dataDir }

func readOrCreate(path string) (InstanceID, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		id := strings.TrimSpace(string(data))
		if _, perr := ulid.ParseStrict(id); perr != nil {
			return "", fmt.Errorf("node: persisted instance id %q is invalid: %w", id, perr)
		}
		return InstanceID(id), nil
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("node: read %s: %w", path, err)
	}

	id, err := NewID()
	if err != nil {
		return "", fmt.Errorf("node: generate instance id: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o640); err != nil {
		return "", fmt.Errorf("node: persist instance id: %w", err)
	}
	return InstanceID(id), nil
}

// A single monotonic entropy source keeps ids generated within the same
// millisecond strictly increasing, which the event stream relies on for its
// cursor.
var (
	entropyMu sync.Mutex
	entropy   io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a fresh, time-ordered ULID string.
func NewID() (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// MustNewID is like NewID but panics on error.
func MustNewID() string {
	id, err := NewID()
	if err != nil {
		panic(fmt.Sprintf("node.MustNewID: %v", err))
	}
	return id
}
