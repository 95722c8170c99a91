package notify

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Issue is one record of the project issue database (.beads/issues.jsonl).
type Issue struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority int    `json:"priority"`
	Assignee string `json:"assignee,omitempty"`
}

// ParseIssues reads a JSON-lines issue file. Malformed lines are skipped so
// a half-written file never stalls the watcher; a missing file is an empty
// database.
func ParseIssues(path string) (map[string]Issue, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Issue{}, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	issues := make(map[string]Issue)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var is Issue
		if err := json.Unmarshal([]byte(line), &is); err != nil || is.ID == "" {
			continue
		}
		issues[is.ID] = is
	}
	return issues, sc.Err()
}

// State is the snapshot of issues the daemon last processed, persisted so a
// restart does not replay old transitions.
type State struct {
	path   string
	Issues map[string]Issue `json:"previous_issues"`
}

// LoadState reads the snapshot; a missing or corrupt file yields an empty
// one.
func LoadState(path string) *State {
	st := &State{path: path, Issues: map[string]Issue{}}
	data, err := os.ReadFile(path)
	if err != nil {
		return st
	}
	_ = json.Unmarshal(data, st)
	if st.Issues == nil {
		st.Issues = map[string]Issue{}
	}
	return st
}

func (s *State) Save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Change kinds produced by DiffIssues.
const (
	ChangeCreated       = "issue-created"
	ChangeInProgress    = "work-started"
	ChangeClosed        = "issue-closed"
	ChangeAgentComplete = "agent-complete"
)

// Change is one announceable transition in the issue database.
type Change struct {
	Kind  string
	Issue Issue
}

// DiffIssues compares the previous snapshot with the current issues and
// returns the transitions worth announcing, ordered by issue ID. A close
// that empties an assignee's queue additionally yields an agent-complete
// change.
func DiffIssues(prev, cur map[string]Issue) []Change {
	ids := make([]string, 0, len(cur))
	for id := range cur {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Change
	for _, id := range ids {
		is := cur[id]
		old, seen := prev[id]
		switch {
		case !seen:
			out = append(out, Change{Kind: ChangeCreated, Issue: is})
		case old.Status != is.Status && is.Status == "in_progress":
			out = append(out, Change{Kind: ChangeInProgress, Issue: is})
		case old.Status != is.Status && is.Status == "closed":
			out = append(out, Change{Kind: ChangeClosed, Issue: is})
			if is.Assignee != "" && !hasOpenFor(cur, is.Assignee) {
				out = append(out, Change{Kind: ChangeAgentComplete, Issue: is})
			}
		}
	}
	return out
}

func hasOpenFor(issues map[string]Issue, assignee string) bool {
	for _, is := range issues {
		if is.Assignee == assignee && is.Status != "closed" {
			return true
		}
	}
	return false
}

// Message renders the Slack text for a change. Fields are clipped here;
// escaping happens once, in Send.
func (c Change) Message() string {
	id := Clip(c.Issue.ID, 100)
	title := Clip(c.Issue.Title, 200)
	agent := Clip(c.Issue.Assignee, 100)

	switch c.Kind {
	case ChangeCreated:
		txt := fmt.Sprintf("Issue Created: %s\n   \"%s\"", id, title)
		if agent != "" {
			txt += "\n   Assigned to: " + agent
		}
		return txt + fmt.Sprintf("\n   Priority: P%d", c.Issue.Priority)
	case ChangeInProgress:
		txt := fmt.Sprintf("Work Started: %s\n   \"%s\"", id, title)
		if agent != "" {
			txt += "\n   Agent: " + agent
		}
		return txt
	case ChangeClosed:
		txt := fmt.Sprintf("Completed: %s\n   \"%s\"", id, title)
		if agent != "" {
			txt += "\n   Agent: " + agent
		}
		return txt
	case ChangeAgentComplete:
		return fmt.Sprintf("Agent Completed All Work\n   Agent: %s\n   Last issue: %s", agent, id)
	}
	return ""
}
