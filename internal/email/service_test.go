package email

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// regexpMatch mirrors redismock's Regexp() matching but renders []byte
// arguments as strings; the built-in matcher formats them with fmt.Sprint,
// which turns a JSON payload into a list of numbers that no regex can match.
func regexpMatch(expected, actual []interface{}) error {
	for i := range expected {
		expr, ok := expected[i].(string)
		if !ok {
			continue
		}
		var val string
		if b, ok := actual[i].([]byte); ok {
			val = string(b)
		} else {
			val = fmt.Sprint(actual[i])
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return err
		}
		if !re.MatchString(val) {
			return fmt.Errorf("args not match, expectation regular: '%s', but gave: '%s'", expr, val)
		}
	}
	return nil
}

func newEmailTest() (*Service, redismock.ClientMock) {
	client, mock := redismock.NewClientMock()
	svc := New(client, "noreply@fitclass.app", "FitClass", "localhost", "1025", "", "")
	return svc, mock
}

func TestSendBookingConfirmedQueuesJob(t *testing.T) {
	svc, mock := newEmailTest()

	mock.CustomMatch(regexpMatch).ExpectLPush(queueKey, `.*"type":"booking_confirmed".*`).SetVal(1)

	start := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)
	err := svc.SendBookingConfirmed(context.Background(), "member@example.com", "Member", start)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendBookingCancelledQueuesJob(t *testing.T) {
	svc, mock := newEmailTest()

	mock.CustomMatch(regexpMatch).ExpectLPush(queueKey, `.*"type":"booking_cancelled".*`).SetVal(1)

	err := svc.SendBookingCancelled(context.Background(), "member@example.com", "Member", "trainer sick")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueSurfacesRedisError(t *testing.T) {
	svc, mock := newEmailTest()

	mock.CustomMatch(regexpMatch).ExpectLPush(queueKey, `.*`).SetErr(assert.AnError)

	err := svc.SendBookingCancelled(context.Background(), "member@example.com", "Member", "whatever")
	assert.Error(t, err)
}

func TestQueueLength(t *testing.T) {
	svc, mock := newEmailTest()

	mock.ExpectLLen(queueKey).SetVal(3)

	assert.Equal(t, int64(3), svc.QueueLength(context.Background()))
}
