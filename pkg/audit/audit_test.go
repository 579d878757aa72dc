package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type AuditTestSuite struct {
	suite.Suite
	tempDir string
	dbPath  string
	log     *Log
}

func (s *AuditTestSuite) SetupTest() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "audit-test-*")
	s.Require().NoError(err)
	s.dbPath = filepath.Join(s.tempDir, "audit.db")

	s.log, err = Open(s.dbPath)
	s.Require().NoError(err)
}

func (s *AuditTestSuite) TearDownTest() {
	if s.log != nil {
		_ = s.log.Close()
	}
	_ = os.RemoveAll(s.tempDir)
}

func (s *AuditTestSuite) TestRecordPersistsEvent() {
	s.log.Record(Event{
		OccurredAt: time.Now(),
		Action:     ActionUpload,
		Repo:       "acme",
		Package:    "widget",
		Version:    "1.0",
		Actor:      "writer-key",
		Outcome:    OutcomeSuccess,
	})

	// Close drains the queue before returning, so reopening is safe to
	// assert against. Use a fresh handle to avoid racing the write.
	s.Require().NoError(s.log.Close())
	s.log = nil

	reopened, err := Open(s.dbPath)
	s.Require().NoError(err)
	defer reopened.Close()

	events, err := reopened.ListEvents(Filter{Repo: "acme"})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(ActionUpload, events[0].Action)
	s.Equal("widget", events[0].Package)
}

func (s *AuditTestSuite) TestListEventsFiltersByRepo() {
	s.log.Record(Event{OccurredAt: time.Now(), Action: ActionUpload, Repo: "acme", Package: "widget", Outcome: OutcomeSuccess})
	s.log.Record(Event{OccurredAt: time.Now(), Action: ActionUpload, Repo: "other", Package: "gadget", Outcome: OutcomeSuccess})
	s.Require().NoError(s.log.Close())
	s.log = nil

	reopened, err := Open(s.dbPath)
	s.Require().NoError(err)
	defer reopened.Close()

	events, err := reopened.ListEvents(Filter{Repo: "acme"})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("acme", events[0].Repo)
}

func (s *AuditTestSuite) TestRecordDoesNotBlockWhenQueueFull() {
	for i := 0; i < queueDepth*2; i++ {
		s.log.Record(Event{OccurredAt: time.Now(), Action: ActionUpload, Repo: "acme", Outcome: OutcomeSuccess})
	}
	// No assertion beyond "this returned": Record must never block the
	// caller even when the writer goroutine can't keep up.
}

func TestAuditSuite(t *testing.T) {
	suite.Run(t, new(AuditTestSuite))
}
