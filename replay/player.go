// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package replay

import (
	"context"
	"io"
	"time"

	"github.com/RobotecAI/rosbag2/pubsub"
	"github.com/RobotecAI/rosbag2/reader"
	"github.com/RobotecAI/rosbag2/support/logging"

	"github.com/pkg/errors"
)

// Player plays a bag back to a middleware publisher.
//
// A Player is not safe for concurrent use. Its exported fields must not be
// changed after playback has begun.
type Player struct {
	// Publisher receives all playback messages. It must not be nil.
	//
	// Publish calls will be made synchronously.
	Publisher pubsub.Publisher

	// Logger is the logger instance to use. If nil, no logging will be
	// performed.
	Logger logging.L

	// Rate scales the playback schedule. 2.0 plays twice as fast, 0.5 at
	// half speed. Zero or negative selects real time (1.0).
	Rate float64

	// Loop restarts playback from the beginning of the bag once it is
	// exhausted, until stopped.
	Loop bool

	// AsFastAsPossible publishes messages back-to-back, ignoring the
	// recorded schedule. Ordering is still preserved.
	AsFastAsPossible bool

	// MaxLagAge is the maximum amount of time in the past that we will
	// allow a message to be scheduled. If the message is older than this, we
	// will drop it and resume the stream once we hit future messages.
	MaxLagAge time.Duration

	ctx        context.Context
	cancelFunc context.CancelFunc

	playback *playerPlayback
}

// Play clears any currently playing bag and begins playback of r.
//
// Play takes ownership of r, and will close it when stopped.
func (p *Player) Play(c context.Context, r *reader.Reader) {
	// Stop any currently-playing bag.
	p.Stop()

	// We will cancel the Context ourselves on Stop. Retain this Context.
	p.ctx, p.cancelFunc = context.WithCancel(c)
	c = p.ctx

	rate := p.Rate
	if rate <= 0 {
		rate = 1.0
	}

	// Initialize player resources.
	p.playback = &playerPlayback{
		player:     p,
		r:          r,
		logger:     logging.Must(p.Logger),
		rate:       rate,
		commandC:   make(chan *playerCommand),
		immediateC: make(chan time.Time),
		finishedC:  make(chan struct{}),
	}
	close(p.playback.immediateC) // Always closed.

	// Start the player goroutine.
	//
	// We will play until the Context is cancelled or the bag is exhausted
	// (unless looping).
	go p.playback.playUntilStopped(c)
}

// Status returns the current player status.
//
// If the player is not playing, Status will return nil.
func (p *Player) Status() *PlayerStatus {
	if p.playback == nil {
		return nil
	}

	statusC := make(chan *PlayerStatus, 1)
	p.playback.sendCommand(&playerCommand{status: statusC})

	select {
	case <-p.playback.finishedC:
		return nil
	case status := <-statusC:
		return status
	}
}

// Pause pauses a current play operation. If nothing is playing, or if the
// playback is already paused, Pause will do nothing.
func (p *Player) Pause() {
	p.playback.sendCommand(&playerCommand{pause: true})
}

// Resume resumes a paused bag. If nothing is playing, or if the bag is not
// paused, Resume will do nothing.
func (p *Player) Resume() {
	p.playback.sendCommand(&playerCommand{resume: true})
}

// SetRate changes the playback rate mid-flight, preserving the current
// stream position. Non-positive rates are ignored.
func (p *Player) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	p.playback.sendCommand(&playerCommand{rate: rate})
}

// Wait blocks until playback finishes on its own or is stopped.
//
// Wait does not release the player's resources. Stop must still be called
// afterwards; until then the playback goroutine stays parked on its command
// channel.
func (p *Player) Wait() {
	if p.playback == nil {
		return
	}
	<-p.playback.finishedC
}

// Stop stops player playback and clears player resources.
func (p *Player) Stop() {
	if p.playback == nil {
		return
	}

	p.cancelFunc()
	<-p.playback.finishedC

	// Clean up any remaining resources.
	close(p.playback.commandC)
	p.playback = nil
}

// PlayerStatus describes the player's current status.
type PlayerStatus struct {
	Path          string
	Rounds        int64
	Position      time.Duration
	Duration      time.Duration
	TotalPlaytime time.Duration
	Rate          float64
	Paused        bool
}

// playerCommand is a command sent to the player's goroutine.
type playerCommand struct {
	pause  bool
	resume bool
	rate   float64

	status chan<- *PlayerStatus
}

type playerPlayback struct {
	player *Player

	r      *reader.Reader
	logger logging.L

	// rate is the current playback rate. It is only touched by the player
	// goroutine.
	rate float64

	commandC   chan *playerCommand
	immediateC chan time.Time // Looks like a timer channel.
	finishedC  chan struct{}

	// playerStartTime is the time when the player started its first round.
	playerStartTime time.Time

	// roundCount is a count of the number of playback rounds that have been
	// started.
	roundCount int64

	// startTime is the time when the current round began playing.
	startTime time.Time
	// bagStart is the timestamp of the bag's first message; message offsets
	// are measured from it.
	bagStart time.Time
	// position is the stream offset of the most recent message.
	position time.Duration
	// realtimeOffset is the amount of time that we spent paused. This allows
	// us to offset the message schedule and determine our stream position
	// even if we pause.
	realtimeOffset time.Duration
	// timer is the Timer used to sleep in between messages.
	timer *time.Timer
}

// sendCommand issues a command to the playerPlayback.
//
// For convenience, if pp is nil, the command will be dropped. This helps
// avoid the need to check for nil for every command issuance point.
func (pp *playerPlayback) sendCommand(cmd *playerCommand) {
	if pp == nil {
		return
	}

	select {
	case pp.commandC <- cmd:
	case <-pp.finishedC:
	}
}

// playUntilStopped is run in its own goroutine. It plays the contents of the
// bag, repeatedly if looping, until its Context is cancelled.
func (pp *playerPlayback) playUntilStopped(c context.Context) {
	// When finished, close our reader.
	defer func() {
		// Stop our timer.
		if pp.timer != nil {
			pp.timer.Stop()
		}

		if err := pp.r.Close(); err != nil {
			pp.logger.Warnf("Failed to close bag: %s", err)
		}

		// Signal that we've finished.
		close(pp.finishedC)

		// Consume any superfluous commands.
		//
		// Since finishedC is closed, no new commands will be sent.
		for range pp.commandC {
		}
	}()

	// Set our playing metric. Clear them when we're finished.
	playerPlayingGauge.Set(1)
	playerPausedGauge.Set(0)
	playerCyclesGauge.Set(0)
	defer func() {
		playerPlayingGauge.Set(0)
		playerPausedGauge.Set(0)
		playerCyclesGauge.Set(0)
	}()

	md := pp.r.Metadata()
	pp.bagStart = md.StartTime()

	// Re-advertise the bag's topics before publishing on them.
	for _, ti := range md.Topics {
		if err := pp.player.Publisher.DeclareTopic(ti.Topic); err != nil {
			pp.logger.Errorf("Could not declare topic %q: %s", ti.Topic.Name, err)
			playerErrors.Inc()
			return
		}
	}

	pp.playerStartTime = time.Now()

	for {
		// Check to see if the Context is cancelled yet.
		select {
		case <-c.Done():
			return
		default:
		}

		// Begin the next round.
		playerCyclesGauge.Inc()
		pp.logger.Infof("Starting player round #%d...", pp.roundCount)
		pp.roundCount++

		if pp.roundCount > 1 {
			// Reset our reader to the bag's starting position.
			if err := pp.r.Seek(pp.bagStart); err != nil {
				pp.logger.Errorf("Failed to rewind bag: %s", err)
				playerErrors.Inc()
				return
			}
		}

		if err := pp.playRound(c); err != nil && errors.Cause(err) != context.Canceled {
			pp.logger.Warnf("Error during playback: %s", err)
			playerErrors.Inc()
			return
		}

		if !pp.player.Loop {
			return
		}
	}
}

func (pp *playerPlayback) playRound(c context.Context) error {
	// Initialize round data.
	pp.startTime = time.Now()
	pp.realtimeOffset = 0
	pp.position = 0

	// Loop until we've exhausted the bag.
	for {
		// Read the next message from the bag.
		msg, err := pp.r.ReadNext()
		if err != nil {
			if err == io.EOF {
				pp.logger.Debugf("Hit EOF reading messages.")
				return nil
			}

			pp.logger.Errorf("Could not read next message: %s", err)
			return err
		}
		pp.position = msg.Timestamp.Sub(pp.bagStart)

		// Wait for our next message offset to pass.
		delta, err := pp.waitForNextCommandOrMessage(c, pp.position)
		if err != nil {
			return err
		}

		// If our message is scheduled in the past, consider dropping it if
		// it's too far behind.
		if maxLag := pp.player.MaxLagAge; maxLag > 0 {
			if effectiveDelta := maxLag - delta; effectiveDelta < 0 {
				pp.logger.Infof("Message on %q (offset %s) is beyond maximum lag age by %s; discarding.",
					msg.Topic, pp.position, -effectiveDelta)
				playerDropped.Inc()
				continue
			}
		}

		// Publish this message.
		if err := pp.player.Publisher.Publish(msg); err != nil {
			pp.logger.Warnf("Could not publish message on %q: %s", msg.Topic, err)
			playerErrors.Inc()
			continue
		}

		playerSentMessages.Inc()
		playerSentBytes.Add(float64(len(msg.Data)))
	}
}

// waitForNextCommandOrMessage blocks until the next command arrives or the
// message at offset comes due on the (rate-scaled) schedule.
//
// This is the main control point for the player.
//
// Pause is implemented by toggling a boolean which, if true, will remove the
// offset-based timer from the list of unblockers, causing the loop to block
// pending a new command (potentially resume) or cancellation.
func (pp *playerPlayback) waitForNextCommandOrMessage(c context.Context, offset time.Duration) (time.Duration, error) {
	// If pausedStart is not zero, then we are paused.
	//
	// When we exit this loop, we are definitely not paused, so clear the
	// paused state then.
	pausedStart := time.Time{}
	defer playerPausedGauge.Set(0)

	// Stupid timer stuff that we have to do in order to reuse a timer.
	timerRunning := false
	resetTimer := func() {
		// If the timer was running, and it has now stopped, consume the
		// signal on its channel.
		if timerRunning && !pp.timer.Stop() {
			<-pp.timer.C
		}
		timerRunning = false
	}

	// scaled translates a stream offset into schedule time at the current
	// rate.
	scaled := func(offset time.Duration) time.Duration {
		return time.Duration(float64(offset) / pp.rate)
	}

	// Handle a player command, updating our "wait" state.
	processCommand := func(cmd *playerCommand) {
		switch {
		case cmd.pause:
			pausedStart = time.Now()
			pp.logger.Info("Player is paused.")
			playerPausedGauge.Set(1)

		case cmd.resume:
			if !pausedStart.IsZero() {
				pp.logger.Info("Player is resuming.")

				// Add the amount of time that we were paused to our realtime
				// offset.
				pp.realtimeOffset += time.Now().Sub(pausedStart)

				// Mark that we're no longer paused.
				pausedStart = time.Time{}
				playerPausedGauge.Set(0)
			}

		case cmd.rate > 0:
			// Rebase the round's start time so the current position plays
			// through unmoved at the new rate.
			now := time.Now().Add(-pp.realtimeOffset)
			elapsed := now.Sub(pp.startTime)
			position := time.Duration(float64(elapsed) * pp.rate)
			pp.rate = cmd.rate
			pp.startTime = now.Add(-scaled(position))
			pp.logger.Infof("Playback rate is now %.2fx.", pp.rate)

		case cmd.status != nil:
			status := &PlayerStatus{
				Rounds:   pp.roundCount,
				Position: pp.position,
				Duration: pp.r.Metadata().Duration(),
				Rate:     pp.rate,
				Paused:   !pausedStart.IsZero(),
			}

			// Calculate the total playtime. This can be a little tricky,
			// since we don't want to count time that we've been paused.
			//
			// We can factor in previous pause rounds by subtracting
			// realtimeOffset. We can factor in the current pause round (if
			// applicable) by subtracting it explicitly.
			now := time.Now()
			totalPlaytime := now.Sub(pp.playerStartTime) - pp.realtimeOffset
			if !pausedStart.IsZero() {
				totalPlaytime -= now.Sub(pausedStart)
			}
			status.TotalPlaytime = totalPlaytime

			cmd.status <- status
		}
	}

	// Select until we've reached our offset or encounter an error.
	for {
		// Quick pass to see if there's a command ready.
		select {
		case cmd := <-pp.commandC:
			processCommand(cmd)
			continue
		case <-c.Done():
			return 0, c.Err()
		default:
			// No pending commands.
		}

		streamNow := time.Now().Add(-pp.realtimeOffset)
		nextMessageTime := pp.startTime.Add(scaled(offset))

		var timerC <-chan time.Time
		delta := time.Duration(0)
		switch {
		case !pausedStart.IsZero():
			// If we're paused, then we will never trigger on a timer.

		case pp.player.AsFastAsPossible:
			// Publish back-to-back; the schedule is ignored.
			timerC = pp.immediateC

		case !nextMessageTime.After(streamNow):
			// The next message is now or in the past, so we can immediately
			// trigger.
			timerC = pp.immediateC
			delta = streamNow.Sub(nextMessageTime)

		default:
			// The next message is in the future. Initialize/start our timer.
			sleepDelta := nextMessageTime.Sub(streamNow)
			pp.logger.Debugf("Sleeping %s until next message (d=%s)", sleepDelta, offset)
			if pp.timer == nil {
				pp.timer = time.NewTimer(sleepDelta)
			} else {
				pp.timer.Reset(sleepDelta)
			}
			timerC = pp.timer.C
			timerRunning = true

			// Leave delta at "0". If the timer expires, this will cause us
			// to report that the message published exactly when we wanted it
			// to, smoothing over noise from function execution and timer
			// imperfection.
		}

		select {
		case cmd := <-pp.commandC:
			resetTimer()
			processCommand(cmd)

		case <-c.Done():
			resetTimer()

			// We've finished our playback, or have been cancelled.
			return 0, c.Err()

		case _, ok := <-timerC:
			// Our timer has expired, indicating that we've hit our next
			// offset.
			//
			// Note that if !ok, this is our immediateC optimization/hack
			// happening, not the actual timer expiring.
			if ok {
				timerRunning = false
			}
			resetTimer()

			// Return delta, indicating how late the message is relative to
			// its schedule.
			return delta, nil
		}
	}
}
