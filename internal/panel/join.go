package panel

import "sync"

// Join3 runs a, b and c concurrently and returns once all three have returned.
// Each result is surfaced on its own; a failing or absent result never cancels the others.
func Join3[A, B, C any](a func() A, b func() B, c func() C) (A, B, C) {
	var (
		wg sync.WaitGroup
		ra A
		rb B
		rc C
	)
	wg.Add(3)
	go func() { defer wg.Done(); ra = a() }()
	go func() { defer wg.Done(); rb = b() }()
	go func() { defer wg.Done(); rc = c() }()
	wg.Wait()
	return ra, rb, rc
}
