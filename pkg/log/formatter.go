package log

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

const timestampFormat = "15:04:05.000"

var levelColors = map[Level]string{
	ErrorLevel: "\033[31m",
	WarnLevel:  "\033[33m",
	InfoLevel:  "\033[32m",
	DebugLevel: "\033[36m",
	TraceLevel: "\033[90m",
}

const resetColor = "\033[0m"

// Formatter renders entries as `time LEVEL [prefix] message key=value ...`.
type Formatter struct {
	DisableColors    bool
	DisableTimestamp bool
}

// NewFormatter returns a formatter with colors disabled.
func NewFormatter() *Formatter {
	return &Formatter{DisableColors: true}
}

// Format implements logrus.Formatter.
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	buf := entry.Buffer
	if buf == nil {
		buf = &bytes.Buffer{}
	}

	fields := Fields(entry.Data)
	level := FromLogrusLevel(entry.Level)

	if !f.DisableTimestamp {
		buf.WriteString(entry.Time.Format(timestampFormat))
		buf.WriteByte(' ')
	}

	if f.DisableColors {
		buf.WriteString(level.ShortName())
	} else {
		buf.WriteString(levelColors[level] + level.ShortName() + resetColor)
	}

	buf.WriteByte(' ')

	if prefix, ok := fields[FieldKeyPrefix]; ok {
		fmt.Fprintf(buf, "[%v] ", prefix)
	}

	buf.WriteString(strings.TrimSuffix(entry.Message, "\n"))

	for _, key := range fields.Keys(FieldKeyPrefix) {
		fmt.Fprintf(buf, " %s=%s", key, quoteIfNeeded(fmt.Sprint(fields[key])))
	}

	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

func quoteIfNeeded(val string) string {
	if strings.ContainsAny(val, " \t\"=") {
		return fmt.Sprintf("%q", val)
	}

	return val
}
