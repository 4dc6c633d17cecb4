package browser

import (
	"math/rand"
	"time"
)

// StealthScript runs before any page script on every document in the
// session. It hides navigator.webdriver, reports a non-empty plugin list and
// exposes a window.chrome runtime like a regular desktop Chrome.
const StealthScript = `
Object.defineProperty(navigator, 'webdriver', {
	get: () => undefined
});
Object.defineProperty(navigator, 'plugins', {
	get: () => [1, 2, 3, 4, 5]
});
window.chrome = {
	runtime: {}
};
`

// RandomDuration picks a human-looking pause in [min, max].
func RandomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}
