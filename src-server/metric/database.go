package metric

import (
	"context"
	"time"

	"busboard/src-server/model"
	"busboard/src-server/utils"
)

func database(as *utils.AppState) (time.Duration, error) {
	start := time.Now()
	if _, err := as.BunDB.NewSelect().
		Model((*model.Bus)(nil)).
		Where("bus_number = ?", "").
		Exists(context.Background()); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
