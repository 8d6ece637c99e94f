// Package process runs ffmpeg-style subprocesses whose stdin and stdout carry
// media data.
//
// Pipe wraps os/exec for a single long-running filter process:
//   - stdin and stdout are handed to the caller as raw byte streams
//   - stderr is parsed line by line and forwarded to a logger
//   - Stop sends SIGINT and force kills after a grace period
//   - the process group is isolated so terminal signals reach only the parent
//
// Output runs a short-lived command to completion and returns its stdout.
//
// Example:
//
//	p := process.NewPipe("h264-enc", []string{"ffmpeg", "-i", "-", "-f", "h264", "-"}, logger)
//	p.SetLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLine)
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	go io.Copy(sink, p.Stdout())
//	p.Stdin().Write(frame)
//	p.CloseInput()
//	err := p.Wait()
package process
