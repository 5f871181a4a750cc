// Package playback schedules received audio for gapless, strictly ordered
// output.
//
// Positions are counted in sample frames at the output rate, so a chunk of
// n frames scheduled at p ends exactly at p+n and the next chunk starts
// there. The only clock is the output device's: a Timeline counts the
// frames the sink has pulled and mixes whatever is scheduled under them.
//
//	tl := playback.NewTimeline(24000)
//	dev, _ := playback.Open(ctx, sink, tl)
//	s := playback.NewScheduler(dev, playback.Options{})
//	s.Enqueue(buf)   // start = max(next, now); next = start + len
//	s.Interrupt()    // stop everything, next = unset
//	s.Shutdown()     // interrupt + release the device
package playback
