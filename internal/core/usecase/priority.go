package usecase

import (
	"cmp"
	"math"
	"slices"

	"github.com/Analogium/PriceWatch/internal/core/domain"
)

// PriorityScore - насколько цена выше целевой, в долях целевой.
// 0 для товаров, уже достигших цели. Меньше - проверяется раньше.
func PriorityScore(p domain.Product) float64 {
	if p.CurrentPrice.LessThanOrEqual(p.TargetPrice) {
		return 0
	}
	if !p.TargetPrice.IsPositive() {
		return math.Inf(1)
	}
	score, _ := p.CurrentPrice.Sub(p.TargetPrice).Div(p.TargetPrice).Float64()
	return score
}

type scoredProduct struct {
	product domain.Product
	score   float64
}

// SortByPriority возвращает товары по возрастанию приоритета.
// Сортировка устойчивая: при равенстве сохраняется порядок выборки.
func SortByPriority(products []domain.Product) []domain.Product {
	scored := make([]scoredProduct, len(products))
	for i, p := range products {
		scored[i] = scoredProduct{product: p, score: PriorityScore(p)}
	}
	slices.SortStableFunc(scored, func(a, b scoredProduct) int {
		return cmp.Compare(a.score, b.score)
	})

	sorted := make([]domain.Product, len(scored))
	for i, s := range scored {
		sorted[i] = s.product
	}
	return sorted
}

// Batches режет список на пачки не больше size
func Batches(products []domain.Product, size int) [][]domain.Product {
	if size < 1 {
		size = 1
	}
	var batches [][]domain.Product
	for start := 0; start < len(products); start += size {
		end := min(start+size, len(products))
		batches = append(batches, products[start:end])
	}
	return batches
}
