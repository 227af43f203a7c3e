package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/planform/agents"
	"github.com/lexcodex/planform/execution"
	"github.com/lexcodex/planform/framework"
	"github.com/lexcodex/planform/llm"
	"github.com/lexcodex/planform/llm/llmtest"
	"github.com/lexcodex/planform/persistence"
	"github.com/lexcodex/planform/planning"
	"github.com/lexcodex/planform/store"
	"github.com/lexcodex/planform/task"
	"github.com/lexcodex/planform/tools"
	"github.com/lexcodex/planform/tracker"
	"github.com/lexcodex/planform/workspace"
)

type fixture struct {
	api   *gin.Engine
	model *llmtest.ScriptedModel
	store *store.Store
}

func serverFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	s, err := store.New(base, nil)
	require.NoError(t, err)
	wm, err := workspace.NewManager(base, nil)
	require.NoError(t, err)
	messages, err := persistence.NewSQLiteMessageStore(filepath.Join(base, "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { messages.Close() })

	model := llmtest.NewScriptedModel()
	facade := agents.NewPlanningFacade(llm.NewStructuredCaller(model), nil)
	pipeline := planning.NewPipeline(s, facade, nil)
	engine := execution.NewEngine(s, wm, nil)

	// Chat specialists share one workspace-less dispatcher per request in
	// production; the tests use a fixed project workspace.
	ws, err := wm.Get("chat")
	require.NoError(t, err)
	registry, err := framework.NewToolRegistry(tools.FilesystemTools(ws)...)
	require.NoError(t, err)
	dispatcher := tools.NewDispatcher(registry, nil, nil)
	specialists, fallback := agents.BuildSpecialists(model, dispatcher, nil)
	router := agents.NewRouter(specialists, fallback, nil)

	srv := NewServer(s, pipeline, engine, router, tracker.NewRegistry(), messages, wm, nil)
	return &fixture{api: srv.Routes(), model: model, store: s}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.api.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) createProject(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/user-queries", gin.H{"query": "build a pipeline"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	return created.ID
}

func TestCreateAndListQueries(t *testing.T) {
	f := serverFixture(t)
	id := f.createProject(t)

	rec := f.do(t, http.MethodGet, "/user-queries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var metas []store.Metadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metas))
	require.Len(t, metas, 1)
	require.Equal(t, id, metas[0].ID)

	rec = f.do(t, http.MethodGet, "/user-queries/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetUnknownQueryIs404(t *testing.T) {
	f := serverFixture(t)
	rec := f.do(t, http.MethodGet, "/user-queries/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "detail")
}

func TestDeleteQuery(t *testing.T) {
	f := serverFixture(t)
	id := f.createProject(t)
	rec := f.do(t, http.MethodDelete, "/user-queries/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodDelete, "/user-queries/"+id, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContextQuestionsFlow(t *testing.T) {
	f := serverFixture(t)
	id := f.createProject(t)
	f.model.Push(
		llmtest.Reply{Match: "sufficient", Text: `{"is_context_sufficient": false, "follow_up_questions": ["Which cloud?"]}`},
	)
	rec := f.do(t, http.MethodPost, "/tasks/"+id+"/context-questions", gin.H{})
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Sufficient bool                 `json:"is_context_sufficient"`
		Questions  []task.ContextAnswer `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.False(t, res.Sufficient)
	require.Len(t, res.Questions, 1)
}

func TestInvalidStateMapsTo400(t *testing.T) {
	f := serverFixture(t)
	id := f.createProject(t)
	// IFR straight from NEW violates the state machine.
	rec := f.do(t, http.MethodPost, "/tasks/"+id+"/ifr", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownDimensionRejected(t *testing.T) {
	f := serverFixture(t)
	id := f.createProject(t)
	rec := f.do(t, http.MethodGet, "/tasks/"+id+"/formulate/whatever", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatRoundTripAndTrace(t *testing.T) {
	f := serverFixture(t)
	id := f.createProject(t)
	f.model.Push(llmtest.Reply{Text: "hello from the agent"})

	rec := f.do(t, http.MethodPost, "/tasks/"+id+"/chat", gin.H{"message": "hi there friend"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Response  string `json:"response"`
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "hello from the agent", resp.Response)
	require.Equal(t, "default", resp.SessionID)

	rec = f.do(t, http.MethodGet, "/tasks/"+id+"/trace?session_id=default", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trace struct {
		Transfers []tracker.AgentTransfer `json:"transfers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trace))
	require.NotEmpty(t, trace.Transfers)
}

func TestChatStreamEmitsSSEFrames(t *testing.T) {
	f := serverFixture(t)
	id := f.createProject(t)
	f.model.Push(llmtest.Reply{Text: "streamed reply"})

	rec := f.do(t, http.MethodPost, "/tasks/"+id+"/chat/stream", gin.H{"message": "hello you"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	require.Contains(t, body, "data: ")
	require.Contains(t, body, "message_chunk")
	require.Contains(t, body, "completion")
	require.Contains(t, body, "[AGENT_ROUTING]")
}

func TestChatResetClearsHistoryAndTracker(t *testing.T) {
	f := serverFixture(t)
	id := f.createProject(t)
	f.model.Push(llmtest.Reply{Text: "first reply"})
	rec := f.do(t, http.MethodPost, "/tasks/"+id+"/chat", gin.H{"message": "hello there"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/tasks/"+id+"/chat/reset", gin.H{"session_id": "default"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/tasks/"+id+"/trace?session_id=default", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func planFixtureTask(t *testing.T, f *fixture, id string) {
	t.Helper()
	tk, err := f.store.LoadTask(id)
	require.NoError(t, err)
	tk.State = task.StateNetworkPlanGenerated
	tk.NetworkPlan = &task.NetworkPlan{Stages: []task.Stage{{
		ID: "S1", Name: "Setup",
		WorkPackages: []task.Work{{
			ID: "S1_W1", StageID: "S1", Name: "Configure", SequenceOrder: 0,
			Tasks: []task.ExecutableTask{{
				ID: "S1_W1_ET1", WorkID: "S1_W1", Name: "Create config", SequenceOrder: 0,
				Subtasks: []task.Subtask{{
					ID: "S1_W1_ET1_ST1", ParentTaskID: "S1_W1_ET1",
					Name: "Write configuration file", Description: "create the config",
					ExecutorType: task.ExecutorAIAgent, SequenceOrder: 0, Status: task.StatusPending,
				}},
			}},
		}},
	}}}
	require.NoError(t, f.store.SaveTask(id, tk))
}

func TestSubtaskStatusLifecycleOverHTTP(t *testing.T) {
	f := serverFixture(t)
	id := f.createProject(t)
	planFixtureTask(t, f, id)
	ref := "S1_W1_ET1_ST1"

	rec := f.do(t, http.MethodPut, "/tasks/"+id+"/subtasks/"+ref+"/status",
		gin.H{"status": "IN_PROGRESS"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/tasks/"+id+"/subtasks/"+ref+"/complete",
		gin.H{"result": "all done"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/tasks/"+id+"/subtasks/"+ref+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st task.Subtask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.Equal(t, task.StatusCompleted, st.Status)
	require.Equal(t, "all done", st.Result)
	require.NotNil(t, st.CompletedAt)
}

func TestSubtaskStatusRejectsUnknownStatus(t *testing.T) {
	f := serverFixture(t)
	id := f.createProject(t)
	planFixtureTask(t, f, id)
	rec := f.do(t, http.MethodPut, "/tasks/"+id+"/subtasks/S1_W1_ET1_ST1/status",
		gin.H{"status": "DONEISH"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubtaskFailEndpoint(t *testing.T) {
	f := serverFixture(t)
	id := f.createProject(t)
	planFixtureTask(t, f, id)
	rec := f.do(t, http.MethodPost, "/tasks/"+id+"/subtasks/S1_W1_ET1_ST1/fail",
		gin.H{"error_message": "executor crashed"})
	require.Equal(t, http.StatusOK, rec.Code)
	var st task.Subtask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.Equal(t, task.StatusFailed, st.Status)
	require.Equal(t, "executor crashed", st.ErrorMessage)
}

func TestExecuteSubtaskEndpoint(t *testing.T) {
	f := serverFixture(t)
	id := f.createProject(t)
	planFixtureTask(t, f, id)
	rec := f.do(t, http.MethodPost, "/tasks/"+id+"/subtasks/S1_W1_ET1_ST1/execute", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var flow execution.FlowResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flow))
	require.Equal(t, task.StatusCompleted, flow.Status)
	require.Equal(t, "FileOperationExecutor", flow.Executor)
}

func TestUnknownSubtaskRefIs404(t *testing.T) {
	f := serverFixture(t)
	id := f.createProject(t)
	planFixtureTask(t, f, id)
	rec := f.do(t, http.MethodGet, "/tasks/"+id+"/subtasks/S9_W9_ET9_ST9/status", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
