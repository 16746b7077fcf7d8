package server

import (
	"time"

	"github.com/miquels/webnis/pkg/server/datalog"
)

// datalogger adapts pkg/server/datalog.Log to the two logging call sites
// handlers.go needs, translating a lookup/auth error into the Record's
// "outcome" field.
type datalogger struct {
	log *datalog.Log
}

func (d datalogger) logLookup(domainName, mapName, keyName, keyValue string, err error) {
	d.log.Write(datalog.Record{
		Time:    time.Now(),
		Kind:    "lookup",
		Domain:  domainName,
		Map:     mapName,
		Key:     keyName,
		Outcome: outcomeOf(err),
	})
}

func (d datalogger) logAuth(domainName, username string, err error) {
	d.log.Write(datalog.Record{
		Time:    time.Now(),
		Kind:    "auth",
		Domain:  domainName,
		Key:     username,
		Outcome: outcomeOf(err),
	})
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	return err.Error()
}
