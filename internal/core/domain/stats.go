package domain

import "time"

// StatStatus - статус записи телеметрии
type StatStatus string

const (
	StatSuccess     StatStatus = "success"
	StatFailure     StatStatus = "failure"
	StatUnavailable StatStatus = "unavailable"
)

// ScrapingStat - строка телеметрии, пишется один раз на исход конвейера
type ScrapingStat struct {
	SiteTag             SiteTag
	ProductID           *int64
	Status              StatStatus
	ResponseTimeSeconds *float64
	ErrorMessage        *string
	CreatedAt           time.Time
}

// NewScrapingStat собирает строку телеметрии
func NewScrapingStat(site SiteTag, productID *int64, status StatStatus, elapsed time.Duration, err error) ScrapingStat {
	stat := ScrapingStat{
		SiteTag:   site,
		ProductID: productID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	if elapsed > 0 {
		seconds := elapsed.Seconds()
		stat.ResponseTimeSeconds = &seconds
	}
	if err != nil {
		msg := err.Error()
		stat.ErrorMessage = &msg
	}
	return stat
}

// RunReport - итог одного запуска проверки по корзине частоты
type RunReport struct {
	RunID       string `json:"run_id"`
	BucketHours int    `json:"bucket_hours"`
	Selected    int    `json:"selected"`
	Batches     int    `json:"batches"`
	Succeeded   int    `json:"succeeded"`
	Unavailable int    `json:"unavailable"`
	Failed      int    `json:"failed"`
	Alerts      int    `json:"alerts"`
}

// Add учитывает исход одной проверки
func (r *RunReport) Add(kind OutcomeKind, alerted bool) {
	switch kind {
	case OutcomeSuccess:
		r.Succeeded++
	case OutcomeUnavailable:
		r.Unavailable++
	default:
		r.Failed++
	}
	if alerted {
		r.Alerts++
	}
}
