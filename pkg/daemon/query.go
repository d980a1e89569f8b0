package daemon

import (
	"bytes"
	"context"
	"sync/atomic"
	"text/template"

	"github.com/dustin/go-humanize"
	pkgerrors "github.com/pkg/errors"

	"github.com/battwatch/battwatch/pkg/notify"
	"github.com/battwatch/battwatch/pkg/powerinfo"
)

// queryView is what the notification templates see. Numbers are already
// formatted.
type queryView struct {
	Vendor     string
	Model      string
	Percentage string
	Power      string
	Energy     string
	Voltage    string
	State      string
	Sign       string
}

func newQueryView(info *powerinfo.Info) queryView {
	return queryView{
		Vendor:     info.Vendor,
		Model:      info.Model,
		Percentage: humanize.FtoaWithDigits(info.Percentage, 1),
		Power:      humanize.FtoaWithDigits(info.Power, 2),
		Energy:     humanize.FtoaWithDigits(info.Energy, 2),
		Voltage:    humanize.FtoaWithDigits(info.Voltage, 2),
		State:      info.State,
		Sign:       info.Sign,
	}
}

func renderTemplate(name, text string, v queryView) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", pkgerrors.Wrapf(err, "invalid %s template", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to render %s template", name)
	}
	return buf.String(), nil
}

// renderQuery formats a query result with the summary and body templates.
func renderQuery(summary, body string, info *powerinfo.Info) (string, string, error) {
	v := newQueryView(info)
	s, err := renderTemplate("summary", summary, v)
	if err != nil {
		return "", "", err
	}
	b, err := renderTemplate("body", body, v)
	if err != nil {
		return "", "", err
	}
	return s, b, nil
}

// query refreshes and reads the tracked device.
func (d *Daemon) query(ctx context.Context) (*powerinfo.Info, error) {
	src := d.currentSource()
	if src == nil {
		return nil, powerinfo.ErrNoDevice
	}
	return src.Query(ctx)
}

// notifyQuery shows the query result as a notification. Each call replaces
// the previous query notification.
func (d *Daemon) notifyQuery(ctx context.Context) error {
	info, err := d.query(ctx)
	if err != nil {
		return err
	}
	summary, body, err := renderQuery(d.conf.NotificationQuerySummary(), d.conf.NotificationQueryBody(), info)
	if err != nil {
		return err
	}

	id, err := d.notifier.Notify(notify.Notification{
		Title:      summary,
		Body:       body,
		Icon:       d.icon(),
		Timeout:    d.conf.NotificationTimeout(),
		ReplacesID: atomic.LoadUint32(&d.queryNotification),
		Urgency:    notify.UrgencyLow,
	})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to show query notification")
	}
	atomic.StoreUint32(&d.queryNotification, id)
	return nil
}
