// Package pagecount переводит логические страницы документа в физические листы
package pagecount

import (
	"fmt"
	"math"

	"github.com/asquebay/print-queue-service/internal/model"
)

// Size задаёт размер листа [высота, ширина] в миллиметрах
type Size [2]float64

// A4 задаёт стандартный размер по умолчанию
var A4 = Size{297, 210}

const (
	// MaxSide ограничивает сторону листа в миллиметрах
	MaxSide = 100_000
	// MaxPages ограничивает результат расчёта, больше не помещается в колонку num_pages
	MaxPages = math.MaxInt32
)

// Calculate считает количество листов для задания
// площадь листа нормируется к стандартному размеру, затем учитываются копии и двусторонняя печать
func Calculate(totalPages int, pageSize []float64, duplex bool, copies int, standard Size) (int, error) {
	const op = "pagecount.Calculate"

	if len(pageSize) != 2 {
		return 0, fmt.Errorf("%s: %w", op, model.Invalidf("page size must be [height, width]"))
	}
	height, width := pageSize[0], pageSize[1]
	if !positive(height) || !positive(width) {
		return 0, fmt.Errorf("%s: %w", op, model.Invalidf("height and width must be positive numbers"))
	}
	if height > MaxSide || width > MaxSide {
		return 0, fmt.Errorf("%s: %w", op, model.Invalidf("height and width must not exceed %d mm", MaxSide))
	}
	if totalPages <= 0 {
		return 0, fmt.Errorf("%s: %w", op, model.Invalidf("total pages must be a positive number"))
	}
	if copies < 1 {
		return 0, fmt.Errorf("%s: %w", op, model.Invalidf("copies must be at least 1"))
	}
	if !positive(standard[0]) || !positive(standard[1]) {
		return 0, fmt.Errorf("%s: %w", op, model.Invalidf("standard page size must be positive"))
	}

	// ceil(total / (area / stdArea)) одним делением, для целых размеров без ошибки округления
	sheets := math.Ceil(float64(totalPages) * (standard[0] * standard[1]) / (height * width))

	// NaN и +Inf отсекаются здесь же: сравнение с ними ложно
	if !(sheets >= 1 && sheets <= MaxPages) || int(sheets) > MaxPages/copies {
		return 0, fmt.Errorf("%s: %w", op, model.Invalidf("printjob exceeds %d pages", MaxPages))
	}
	adjusted := int(sheets) * copies

	if duplex {
		return adjusted/2 + adjusted%2, nil
	}
	return adjusted, nil
}

// Adjusted считает количество страниц до учёта двусторонней печати
func Adjusted(totalPages int, pageSize []float64, copies int, standard Size) (int, error) {
	return Calculate(totalPages, pageSize, false, copies, standard)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
