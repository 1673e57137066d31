package rabbitmq

import "testing"

func TestRetryQueueName(t *testing.T) {
	got := RetryQueueName("tasks.high", 5)
	want := "tasks.high.retry.5s"
	if got != want {
		t.Fatalf("RetryQueueName() = %q, want %q", got, want)
	}
}

func TestRetryQueueName_DifferentDelaysProduceDistinctLanes(t *testing.T) {
	seen := map[string]bool{}
	for _, d := range []int{1, 5, 30, 120} {
		name := RetryQueueName("tasks.medium", d)
		if seen[name] {
			t.Fatalf("duplicate retry lane name %q for delay %d", name, d)
		}
		seen[name] = true
	}
}
