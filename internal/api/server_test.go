package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"mqueue-go/internal/api"
	"mqueue-go/internal/audit"
	"mqueue-go/internal/auth"
	"mqueue-go/internal/broker/memory"
	"mqueue-go/internal/config"
	"mqueue-go/internal/domain"
	eventsmemory "mqueue-go/internal/events/memory"
	"mqueue-go/internal/queue"
	"mqueue-go/internal/registry"
	storememory "mqueue-go/internal/store/memory"
)

const (
	adminToken  = "admin-token"
	agentToken  = "agent-token"
	pullTimeout = 300 * time.Millisecond
	maxSize     = 3
)

// tokenVerifier resolves a fixed set of bearer tokens to roles.
type tokenVerifier map[string]auth.Role

func (v tokenVerifier) Verify(_ context.Context, authorization string) (auth.Principal, error) {
	token := strings.TrimPrefix(authorization, "Bearer ")
	role, ok := v[token]
	if !ok {
		return auth.Principal{}, fmt.Errorf("%w: unknown token", auth.ErrVerificationFailed)
	}
	return auth.Principal{ID: token, Role: role}, nil
}

// downPinger reports the broker as unreachable.
type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func transactionJSON(id int) map[string]any {
	return map[string]any{
		"id":          id,
		"customer_id": 42,
		"vendor_id":   7,
		"timestamp":   "2023-06-01T10:00:00Z",
		"status":      "pending",
		"amount":      99.5,
	}
}

func resultJSON(id int) map[string]any {
	return map[string]any{
		"id":             id,
		"transaction_id": id,
		"timestamp":      "2023-06-01T10:00:05Z",
		"is_fraudulent":  0,
		"confidence":     0.25,
	}
}

type testServer struct {
	server    *api.Server
	service   *queue.Service
	publisher *eventsmemory.Publisher
}

func newTestServer(health api.Pinger) *testServer {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx := context.Background()

	b := memory.New()
	reg := registry.New(b, logger)
	Expect(reg.Bootstrap(ctx, []string{config.TransactionsQueue, config.ResultsQueue}, true)).To(Succeed())

	queueCfg := &config.QueueConfig{
		MaxSize:     maxSize,
		Unbounded:   []string{config.ResultsQueue},
		Reserved:    []string{config.TransactionsQueue, config.ResultsQueue},
		PullTimeout: pullTimeout,
	}
	svc := queue.NewService(b, b, reg, queueCfg, logger)

	publisher := eventsmemory.NewPublisher(16)
	auditSvc := audit.NewService(storememory.NewQueueEventRepository(), publisher, logger)

	verifier := tokenVerifier{
		adminToken: auth.RoleAdministrator,
		agentToken: auth.RoleAgent,
	}
	if health == nil {
		health = svc
	}

	srv := api.NewServer(api.ServerDeps{
		Config: &config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         0,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
		},
		Logger:       logger,
		Guard:        auth.NewGuard(verifier, auth.DefaultPolicy(), false, logger),
		Health:       health,
		QueueHandler: api.NewQueueHandler(svc, logger),
		AdminHandler: api.NewAdminHandler(reg, auditSvc, logger),
		AuditHandler: api.NewAuditHandler(auditSvc, logger),
	})

	return &testServer{server: srv, service: svc, publisher: publisher}
}

// do sends a request through the app and returns the status and raw body.
func (ts *testServer) do(method, path, token string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.server.App().Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp.StatusCode, data
}

func (ts *testServer) push(queueName string, message map[string]any) int {
	status, _ := ts.do(http.MethodPost, "/push", agentToken, map[string]any{
		"queue_name": queueName,
		"message":    message,
	})
	return status
}

func decodeError(data []byte) api.ErrorResponse {
	var resp api.ErrorResponse
	Expect(json.Unmarshal(data, &resp)).To(Succeed())
	return resp
}

var _ = Describe("Server", func() {
	var ts *testServer

	BeforeEach(func() {
		ts = newTestServer(nil)
	})

	Describe("unprotected routes", func() {
		It("greets on the root path", func() {
			status, body := ts.do(http.MethodGet, "/", "", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(string(body)).To(Equal("Hello from message queue service!"))
		})

		It("reports healthy when the broker answers", func() {
			status, body := ts.do(http.MethodGet, "/healthz", "", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(string(body)).To(ContainSubstring(`"status":"healthy"`))
		})

		It("reports unavailable when the broker does not answer", func() {
			ts = newTestServer(downPinger{})
			status, body := ts.do(http.MethodGet, "/healthz", "", nil)
			Expect(status).To(Equal(http.StatusServiceUnavailable))
			Expect(decodeError(body).Error).To(Equal(api.ErrLabelServiceUnhealthy))
		})

		It("exposes prometheus metrics", func() {
			Expect(ts.push(config.TransactionsQueue, transactionJSON(1))).To(Equal(http.StatusCreated))

			status, body := ts.do(http.MethodGet, "/metrics", "", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(string(body)).To(ContainSubstring("mqueue_messages_pushed_total"))
		})

		It("answers unknown paths with 404", func() {
			status, body := ts.do(http.MethodGet, "/nope", "", nil)
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(string(body)).To(Equal(`Path: "/nope" not found`))
		})

		It("answers a known path with the wrong method with 404", func() {
			status, _ := ts.do(http.MethodGet, "/push", agentToken, nil)
			Expect(status).To(Equal(http.StatusNotFound))
		})
	})

	Describe("queue name validation", func() {
		names := []string{"abc", "", "a", strings.Repeat("q", 21), strings.Repeat("é", 21)}

		for _, name := range names {
			name := name

			It(fmt.Sprintf("rejects create of %q", name), func() {
				status, body := ts.do(http.MethodPost, "/create", adminToken, map[string]any{"name": name})
				Expect(status).To(Equal(http.StatusBadRequest))
				Expect(decodeError(body).Issues).NotTo(BeEmpty())
			})

			if name == "" {
				continue
			}

			It(fmt.Sprintf("rejects pull, pull-n and list of %q", name), func() {
				q := "?queue-name=" + url.QueryEscape(name)
				status, _ := ts.do(http.MethodGet, "/pull"+q, agentToken, nil)
				Expect(status).To(Equal(http.StatusBadRequest))

				status, _ = ts.do(http.MethodGet, "/pull-n"+q+"&count=1", agentToken, nil)
				Expect(status).To(Equal(http.StatusBadRequest))

				status, _ = ts.do(http.MethodGet, "/list"+q, agentToken, nil)
				Expect(status).To(Equal(http.StatusBadRequest))
			})
		}

		It("accepts names at both length limits", func() {
			for _, name := range []string{"abcd", strings.Repeat("q", 20)} {
				status, _ := ts.do(http.MethodPost, "/create", adminToken, map[string]any{"name": name})
				Expect(status).To(Equal(http.StatusCreated))
			}
		})

		It("requires the queue-name parameter", func() {
			status, body := ts.do(http.MethodGet, "/pull", agentToken, nil)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(decodeError(body).Error).To(Equal(api.ErrLabelNameRequired))
		})
	})

	Describe("push and pull", func() {
		It("returns exactly the pushed message and leaves the queue empty", func() {
			Expect(ts.push(config.TransactionsQueue, transactionJSON(1))).To(Equal(http.StatusCreated))

			status, body := ts.do(http.MethodGet, "/pull?queue-name="+config.TransactionsQueue, agentToken, nil)
			Expect(status).To(Equal(http.StatusOK))

			var got map[string]any
			Expect(json.Unmarshal(body, &got)).To(Succeed())
			Expect(got).To(HaveKeyWithValue("id", BeNumerically("==", 1)))

			status, body = ts.do(http.MethodGet, "/pull?queue-name="+config.TransactionsQueue, agentToken, nil)
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(decodeError(body).Message).To(Equal("No messages in the queue"))
		})

		It("delivers messages in push order", func() {
			for i := 1; i <= 3; i++ {
				Expect(ts.push(config.TransactionsQueue, transactionJSON(i))).To(Equal(http.StatusCreated))
			}
			for i := 1; i <= 3; i++ {
				status, body := ts.do(http.MethodGet, "/pull?queue-name="+config.TransactionsQueue, agentToken, nil)
				Expect(status).To(Equal(http.StatusOK))
				var got map[string]any
				Expect(json.Unmarshal(body, &got)).To(Succeed())
				Expect(got["id"]).To(BeNumerically("==", i))
			}
		})

		DescribeTable("round-trips valid messages field for field",
			func(message map[string]any) {
				Expect(ts.push(config.ResultsQueue, message)).To(Equal(http.StatusCreated))

				status, body := ts.do(http.MethodGet, "/pull?queue-name="+config.ResultsQueue, agentToken, nil)
				Expect(status).To(Equal(http.StatusOK))

				want, err := json.Marshal(message)
				Expect(err).NotTo(HaveOccurred())
				Expect(body).To(MatchJSON(want))
			},
			Entry("transaction", transactionJSON(10)),
			Entry("result", resultJSON(11)),
			Entry("transaction with extra fields", func() map[string]any {
				m := transactionJSON(12)
				m["note"] = "manual review"
				return m
			}()),
		)

		It("rejects a push to a queue that does not exist", func() {
			status, _ := ts.do(http.MethodPost, "/push", agentToken, map[string]any{
				"queue_name": "missing_queue",
				"message":    transactionJSON(1),
			})
			Expect(status).To(Equal(http.StatusNotFound))
		})

		It("rejects an invalid message with its issues", func() {
			message := transactionJSON(1)
			message["status"] = "lost"

			status, body := ts.do(http.MethodPost, "/push", agentToken, map[string]any{
				"queue_name": config.TransactionsQueue,
				"message":    message,
			})
			Expect(status).To(Equal(http.StatusBadRequest))

			resp := decodeError(body)
			Expect(resp.Error).To(Equal(api.ErrLabelInvalidMessage))
			Expect(resp.Issues).To(ContainElement(HaveField("Path", "status")))
		})

		It("rejects a body that is not JSON", func() {
			req := httptest.NewRequest(http.MethodPost, "/push", strings.NewReader("{"))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+agentToken)

			resp, err := ts.server.App().Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("capacity", func() {
		It("rejects the push past capacity with 409", func() {
			for i := 1; i <= maxSize; i++ {
				Expect(ts.push(config.TransactionsQueue, transactionJSON(i))).To(Equal(http.StatusCreated))
			}
			Expect(ts.push(config.TransactionsQueue, transactionJSON(99))).To(Equal(http.StatusConflict))
		})

		It("never rejects pushes to the results queue", func() {
			for i := 1; i <= maxSize*3; i++ {
				Expect(ts.push(config.ResultsQueue, resultJSON(i))).To(Equal(http.StatusCreated))
			}
		})

		It("rejects a batch that would overflow without pushing any of it", func() {
			Expect(ts.push(config.TransactionsQueue, transactionJSON(1))).To(Equal(http.StatusCreated))

			status, _ := ts.do(http.MethodPost, "/push-n", agentToken, map[string]any{
				"queue_name": config.TransactionsQueue,
				"messages":   []any{transactionJSON(2), transactionJSON(3), transactionJSON(4)},
			})
			Expect(status).To(Equal(http.StatusConflict))

			status, body := ts.do(http.MethodGet, "/list?queue-name="+config.TransactionsQueue, agentToken, nil)
			Expect(status).To(Equal(http.StatusOK))
			var list struct {
				Data []map[string]any `json:"data"`
			}
			Expect(json.Unmarshal(body, &list)).To(Succeed())
			Expect(list.Data).To(HaveLen(1))
		})
	})

	Describe("batch pull", func() {
		It("returns 204 on an empty queue only after the pull timeout", func() {
			start := time.Now()
			status, body := ts.do(http.MethodGet, "/pull-n?queue-name="+config.TransactionsQueue+"&count=2", agentToken, nil)
			Expect(status).To(Equal(http.StatusNoContent))
			Expect(body).To(BeEmpty())
			Expect(time.Since(start)).To(BeNumerically(">=", pullTimeout))
		})

		It("returns what is there without waiting for the rest", func() {
			Expect(ts.push(config.TransactionsQueue, transactionJSON(1))).To(Equal(http.StatusCreated))

			start := time.Now()
			status, body := ts.do(http.MethodGet, "/pull-n?queue-name="+config.TransactionsQueue+"&count=3", agentToken, nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(time.Since(start)).To(BeNumerically("<", pullTimeout))

			var got []map[string]any
			Expect(json.Unmarshal(body, &got)).To(Succeed())
			Expect(got).To(HaveLen(1))
		})

		It("returns at most count messages in push order", func() {
			status, _ := ts.do(http.MethodPost, "/push-n", agentToken, map[string]any{
				"queue_name": config.TransactionsQueue,
				"messages":   []any{transactionJSON(1), transactionJSON(2), transactionJSON(3)},
			})
			Expect(status).To(Equal(http.StatusCreated))

			status, body := ts.do(http.MethodGet, "/pull-n?queue-name="+config.TransactionsQueue+"&count=2", agentToken, nil)
			Expect(status).To(Equal(http.StatusOK))

			var got []map[string]any
			Expect(json.Unmarshal(body, &got)).To(Succeed())
			Expect(got).To(HaveLen(2))
			Expect(got[0]["id"]).To(BeNumerically("==", 1))
			Expect(got[1]["id"]).To(BeNumerically("==", 2))
		})

		It("wakes up when a message arrives during the wait", func() {
			go func() {
				defer GinkgoRecover()
				time.Sleep(pullTimeout / 3)
				_, err := ts.service.Push(context.Background(), config.TransactionsQueue,
					json.RawMessage(`{"id":5,"customer_id":1,"vendor_id":1,"timestamp":"2023-01-01T00:00:00Z","status":"accepted","amount":1}`))
				Expect(err).NotTo(HaveOccurred())
			}()

			status, body := ts.do(http.MethodGet, "/pull-n?queue-name="+config.TransactionsQueue+"&count=1", agentToken, nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(string(body)).To(ContainSubstring(`"id":5`))
		})

		DescribeTable("rejects a bad count",
			func(count string) {
				status, body := ts.do(http.MethodGet, "/pull-n?queue-name="+config.TransactionsQueue+"&count="+count, agentToken, nil)
				Expect(status).To(Equal(http.StatusBadRequest))
				Expect(decodeError(body).Error).To(Equal(api.ErrLabelInvalidCount))
			},
			Entry("missing", ""),
			Entry("zero", "0"),
			Entry("negative", "-2"),
			Entry("not a number", "two"),
		)
	})

	Describe("queue lifecycle", func() {
		It("returns 404 when deleting a queue that does not exist", func() {
			status, _ := ts.do(http.MethodDelete, "/delete", adminToken, map[string]any{"name": "ghost_queue"})
			Expect(status).To(Equal(http.StatusNotFound))
		})

		It("recreates a deleted queue empty", func() {
			Expect(ts.push(config.TransactionsQueue, transactionJSON(1))).To(Equal(http.StatusCreated))

			status, _ := ts.do(http.MethodDelete, "/delete", adminToken, map[string]any{"name": config.TransactionsQueue})
			Expect(status).To(Equal(http.StatusOK))

			status, _ = ts.do(http.MethodPost, "/create", adminToken, map[string]any{"name": config.TransactionsQueue})
			Expect(status).To(Equal(http.StatusCreated))

			status, _ = ts.do(http.MethodGet, "/pull?queue-name="+config.TransactionsQueue, agentToken, nil)
			Expect(status).To(Equal(http.StatusNotFound))
		})

		It("returns 409 when creating a queue twice", func() {
			status, _ := ts.do(http.MethodPost, "/create", adminToken, map[string]any{"name": "orders"})
			Expect(status).To(Equal(http.StatusCreated))

			status, body := ts.do(http.MethodPost, "/create", adminToken, map[string]any{"name": "orders"})
			Expect(status).To(Equal(http.StatusConflict))
			Expect(decodeError(body).Message).To(Equal("Queue orders already exists"))
		})

		It("records lifecycle events in the audit log and the event stream", func() {
			status, _ := ts.do(http.MethodPost, "/create", adminToken, map[string]any{"name": "orders"})
			Expect(status).To(Equal(http.StatusCreated))
			status, _ = ts.do(http.MethodDelete, "/delete", adminToken, map[string]any{"name": "orders"})
			Expect(status).To(Equal(http.StatusOK))

			status, body := ts.do(http.MethodGet, "/audit?queue-name=orders", adminToken, nil)
			Expect(status).To(Equal(http.StatusOK))

			var resp struct {
				Data []domain.QueueEvent `json:"data"`
			}
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.Data).To(HaveLen(2))
			Expect(resp.Data[0].Action).To(Equal(domain.QueueDeleted))
			Expect(resp.Data[1].Action).To(Equal(domain.QueueCreated))
			Expect(resp.Data[0].PrincipalID).To(Equal(adminToken))
			Expect(resp.Data[0].Role).To(Equal(string(auth.RoleAdministrator)))

			Expect(ts.publisher.Recent()).To(HaveLen(2))
		})

		It("rejects a non-positive audit limit", func() {
			status, _ := ts.do(http.MethodGet, "/audit?limit=0", adminToken, nil)
			Expect(status).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("metric labels", func() {
		pulledQueues := func() []string {
			families, err := prometheus.DefaultGatherer.Gather()
			Expect(err).NotTo(HaveOccurred())

			var queues []string
			for _, mf := range families {
				if mf.GetName() != "mqueue_messages_pulled_total" {
					continue
				}
				for _, m := range mf.GetMetric() {
					for _, l := range m.GetLabel() {
						if l.GetName() == "queue" {
							queues = append(queues, l.GetValue())
						}
					}
				}
			}
			return queues
		}

		It("keep the queue name of the request that created them", func() {
			ghost := strings.Repeat("Z", 18)

			Expect(ts.push(config.TransactionsQueue, transactionJSON(1))).To(Equal(http.StatusCreated))
			Expect(ts.push(config.TransactionsQueue, transactionJSON(2))).To(Equal(http.StatusCreated))

			status, _ := ts.do(http.MethodGet, "/pull?queue-name="+config.TransactionsQueue, agentToken, nil)
			Expect(status).To(Equal(http.StatusOK))
			status, _ = ts.do(http.MethodGet, "/pull-n?queue-name="+config.TransactionsQueue+"&count=1", agentToken, nil)
			Expect(status).To(Equal(http.StatusOK))

			for i := 0; i < 5; i++ {
				status, _ = ts.do(http.MethodGet, "/pull?queue-name="+ghost, agentToken, nil)
				Expect(status).To(Equal(http.StatusNotFound))
				status, _ = ts.do(http.MethodGet, "/pull-n?queue-name="+ghost+"&count=1", agentToken, nil)
				Expect(status).To(Equal(http.StatusNotFound))
			}

			queues := pulledQueues()
			Expect(queues).To(ContainElement(config.TransactionsQueue))
			Expect(queues).NotTo(ContainElement(ghost))
		})
	})

	Describe("access control", func() {
		create := map[string]any{"name": "payments"}

		It("lets an administrator create a queue", func() {
			status, _ := ts.do(http.MethodPost, "/create", adminToken, create)
			Expect(status).To(Equal(http.StatusCreated))
		})

		It("forbids an agent from creating a queue", func() {
			status, body := ts.do(http.MethodPost, "/create", agentToken, create)
			Expect(status).To(Equal(http.StatusForbidden))
			Expect(decodeError(body).Error).To(Equal("Forbidden"))
		})

		It("rejects a request without a token", func() {
			status, body := ts.do(http.MethodPost, "/create", "", create)
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(decodeError(body).Message).To(Equal("No token found in Authorization header"))
		})

		It("rejects a token the identity service does not know", func() {
			status, body := ts.do(http.MethodPost, "/create", "stolen", create)
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(decodeError(body).Message).To(Equal("User verification failed"))
		})

		It("lets an agent move messages", func() {
			Expect(ts.push(config.TransactionsQueue, transactionJSON(1))).To(Equal(http.StatusCreated))
			status, _ := ts.do(http.MethodGet, "/list?queue-name="+config.TransactionsQueue, agentToken, nil)
			Expect(status).To(Equal(http.StatusOK))
		})
	})
})
