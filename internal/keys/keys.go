// Package keys centralizes the Redis key and channel names that make up the
// wire contract of a bull-compatible queue. The literal "bull:<name>:<kind>"
// format must not change: a peer implementation (producer or consumer) in
// another language relies on it.
package keys

import "strconv"

// Keys holds every precomputed key and channel name for a single queue.
type Keys struct {
	Name string

	ID         string // counter
	Wait       string // list
	Active     string // list
	Paused     string // list
	Delayed    string // zset
	Completed  string // set
	Failed     string // set
	MetaPaused string // string, presence flag

	JobsChannel    string // pub/sub: new-job notifications
	DelayedChannel string // pub/sub: delay-wake notifications
	PausedChannel  string // pub/sub: paused/resumed broadcast
}

// For returns the full key set for the given queue name.
func For(name string) Keys {
	p := "bull:" + name + ":"
	return Keys{
		Name:           name,
		ID:             p + "id",
		Wait:           p + "wait",
		Active:         p + "active",
		Paused:         p + "paused",
		Delayed:        p + "delayed",
		Completed:      p + "completed",
		Failed:         p + "failed",
		MetaPaused:     p + "meta-paused",
		JobsChannel:    p + "jobs",
		DelayedChannel: p + "delayed",
		PausedChannel:  p + "paused",
	}
}

// Job returns the hash key for a single job id.
func (k Keys) Job(id int64) string {
	return "bull:" + k.Name + ":" + strconv.FormatInt(id, 10)
}

// Lock returns the lock key for a single job id.
func (k Keys) Lock(id int64) string {
	return "bull:" + k.Name + ":" + strconv.FormatInt(id, 10) + ":lock"
}
