package builtin

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/govillas/villasd/pkg/hook"
	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
	"github.com/govillas/villasd/pkg/vlog"
)

// Print writes each sample as a villas.human-style line to a buffered
// writer, prefixed by an optional label in which "%N" is substituted
// with the owning node's name (spec §4.5 supplemented features: "print
// hook prefix"). Writes never block Process: formatting and I/O happen
// in a single bounded-queue worker goroutine, and a full queue drops
// the line rather than stall the path (the one place this daemon
// chooses to shed telemetry over backpressuring data).
type Print struct {
	hook.Base

	prefix   string
	nodeName string
	w        *bufio.Writer
	log      *vlog.Logger

	lines chan string
	wg    sync.WaitGroup
	once  sync.Once
}

// NewPrint builds a Print hook writing to w. nodeName is substituted
// for "%N" in prefix. queueDepth bounds the async write queue; 0 uses
// a reasonable default.
func NewPrint(priority int, ctx hook.Context, w io.Writer, prefix, nodeName string, queueDepth int) *Print {
	if queueDepth <= 0 {
		queueDepth = 1024
	}
	p := &Print{
		prefix:   prefix,
		nodeName: nodeName,
		w:        bufio.NewWriter(w),
		log:      vlog.Component("hook.print"),
		lines:    make(chan string, queueDepth),
	}
	p.Pri = priority
	p.Ctx = ctx
	p.Nam = "print"
	return p
}

func (p *Print) Parse(raw json.RawMessage) error {
	var cfg struct {
		Prefix string `json:"prefix"`
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}
	p.prefix = cfg.Prefix
	return nil
}

func (p *Print) Start() error {
	p.wg.Add(1)
	go p.run()
	return nil
}

func (p *Print) Stop() error {
	p.once.Do(func() { close(p.lines) })
	p.wg.Wait()
	p.w.Flush()
	return nil
}

func (p *Print) run() {
	defer p.wg.Done()
	for line := range p.lines {
		if _, err := p.w.WriteString(line); err != nil {
			p.log.Warnf("write failed: %v", err)
			continue
		}
		p.w.Flush()
	}
}

func (p *Print) Process(smp *sample.Sample) (hook.Verdict, error) {
	line := p.formatLine(smp)
	select {
	case p.lines <- line:
	default:
		p.log.Warn("print hook queue full, dropping line")
	}
	return hook.Ok, nil
}

func (p *Print) formatLine(smp *sample.Sample) string {
	var b strings.Builder
	if p.prefix != "" {
		b.WriteString(strings.ReplaceAll(p.prefix, "%N", p.nodeName))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%d.%09d(%d)", smp.TsOrigin.Unix(), smp.TsOrigin.Nanosecond(), smp.Sequence)
	for i := 0; i < smp.Length; i++ {
		sigType := signal.TypeFloat
		if i < len(smp.Signals) {
			sigType = smp.Signals[i].Type
		}
		b.WriteByte('\t')
		b.WriteString(signal.PrintStr(sigType, smp.Data[i]))
	}
	b.WriteByte('\n')
	return b.String()
}
