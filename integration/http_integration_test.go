package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// getBaseURL returns the base URL for API calls.
// Uses MQUEUE_BASE_URL env var if set (for container tests),
// otherwise defaults to localhost:8003.
func getBaseURL() string {
	if url := os.Getenv("MQUEUE_BASE_URL"); url != "" {
		return url
	}
	return "http://localhost:8003"
}

// adminToken and agentToken are bearer tokens the identity service accepts.
// Both may be empty when the service runs with auth.skip.
func adminToken() string { return os.Getenv("MQUEUE_ADMIN_TOKEN") }
func agentToken() string { return os.Getenv("MQUEUE_AGENT_TOKEN") }

// httpClient creates an HTTP client that outlives a full long poll.
func httpClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
	}
}

// doRequest performs an HTTP request and returns the response.
func doRequest(method, path, token string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	url := getBaseURL() + path
	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return httpClient().Do(req)
}

// parseResponse parses JSON response into target.
func parseResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

func transaction(id int) map[string]interface{} {
	return map[string]interface{}{
		"id":          id,
		"customer_id": 1001,
		"vendor_id":   55,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"status":      "pending",
		"amount":      12.75,
	}
}

var _ = Describe("HTTP Integration Tests", Ordered, func() {
	// Short enough to pass name validation, unique enough to not collide between runs
	queueName := fmt.Sprintf("it_%d", time.Now().UnixNano()%1_000_000_000)

	BeforeAll(func() {
		// Check if the server is reachable
		resp, err := doRequest("GET", "/healthz", "", nil)
		if err != nil {
			Skip(fmt.Sprintf("Server not reachable at %s: %v", getBaseURL(), err))
		}
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	AfterAll(func() {
		resp, err := doRequest("DELETE", "/delete", adminToken(), map[string]interface{}{"name": queueName})
		if err == nil {
			resp.Body.Close()
		}
	})

	Describe("Health Check", func() {
		It("should return healthy status", func() {
			resp, err := doRequest("GET", "/healthz", "", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("Queue lifecycle", func() {
		It("should create a queue", func() {
			resp, err := doRequest("POST", "/create", adminToken(), map[string]interface{}{"name": queueName})
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		})

		It("should refuse to create it twice", func() {
			resp, err := doRequest("POST", "/create", adminToken(), map[string]interface{}{"name": queueName})
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})
	})

	Describe("Messages", func() {
		It("should push a single message", func() {
			payload := map[string]interface{}{
				"queue_name": queueName,
				"message":    transaction(1),
			}

			resp, err := doRequest("POST", "/push", agentToken(), payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		})

		It("should push a batch", func() {
			payload := map[string]interface{}{
				"queue_name": queueName,
				"messages":   []interface{}{transaction(2), transaction(3)},
			}

			resp, err := doRequest("POST", "/push-n", agentToken(), payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		})

		It("should list messages oldest first", func() {
			resp, err := doRequest("GET", "/list?queue-name="+queueName, agentToken(), nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result struct {
				Data []map[string]interface{} `json:"data"`
			}
			Expect(parseResponse(resp, &result)).To(Succeed())
			Expect(result.Data).To(HaveLen(3))
			Expect(result.Data[0]["id"]).To(BeNumerically("==", 1))
		})

		It("should pull the oldest message", func() {
			resp, err := doRequest("GET", "/pull?queue-name="+queueName, agentToken(), nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var msg map[string]interface{}
			Expect(parseResponse(resp, &msg)).To(Succeed())
			Expect(msg["id"]).To(BeNumerically("==", 1))
		})

		It("should pull the rest in one batch", func() {
			resp, err := doRequest("GET", "/pull-n?queue-name="+queueName+"&count=10", agentToken(), nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var msgs []map[string]interface{}
			Expect(parseResponse(resp, &msgs)).To(Succeed())
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0]["id"]).To(BeNumerically("==", 2))
			Expect(msgs[1]["id"]).To(BeNumerically("==", 3))
		})

		It("should report an empty queue", func() {
			resp, err := doRequest("GET", "/pull?queue-name="+queueName, agentToken(), nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should reject an invalid message", func() {
			message := transaction(4)
			delete(message, "amount")

			resp, err := doRequest("POST", "/push", agentToken(), map[string]interface{}{
				"queue_name": queueName,
				"message":    message,
			})
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Metrics", func() {
		It("should expose queue depth", func() {
			resp, err := doRequest("GET", "/metrics", "", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring(fmt.Sprintf(`mqueue_queue_depth{queue=%q}`, queueName)))
		})
	})
})
