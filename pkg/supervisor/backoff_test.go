package supervisor

import (
	"testing"
	"time"

	g "github.com/onsi/gomega"
)

func TestBackoffFor_doubles(t *testing.T) {
	g.RegisterTestingT(t)

	g.Expect(backoffFor(2*time.Second, time.Minute, 0)).To(g.Equal(2 * time.Second))
	g.Expect(backoffFor(2*time.Second, time.Minute, 1)).To(g.Equal(4 * time.Second))
	g.Expect(backoffFor(2*time.Second, time.Minute, 2)).To(g.Equal(8 * time.Second))
}

func TestBackoffFor_neverDecreases(t *testing.T) {
	g.RegisterTestingT(t)

	previous := time.Duration(0)
	for restarts := 0; restarts < 20; restarts++ {
		delay := backoffFor(time.Second, time.Minute, restarts)

		g.Expect(delay).To(g.BeNumerically(">=", previous), "delay shrank at restart %d", restarts)
		previous = delay
	}
}

func TestBackoffFor_capped(t *testing.T) {
	g.RegisterTestingT(t)

	g.Expect(backoffFor(2*time.Second, time.Minute, 10)).To(g.Equal(time.Minute))
	g.Expect(backoffFor(2*time.Second, time.Minute, 100)).To(g.Equal(time.Minute))
}

func TestBackoffFor_defaultsBase(t *testing.T) {
	g.RegisterTestingT(t)

	g.Expect(backoffFor(0, time.Minute, 0)).To(g.Equal(time.Second))
	g.Expect(backoffFor(-time.Second, time.Minute, 1)).To(g.Equal(2 * time.Second))
}

func TestBackoffFor_uncappedWhenMaxUnset(t *testing.T) {
	g.RegisterTestingT(t)

	g.Expect(backoffFor(time.Second, 0, 6)).To(g.Equal(64 * time.Second))
}
