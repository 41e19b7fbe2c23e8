package listing

// Ellipsis marks a gap in the page numbers returned by PageNumbers.
const Ellipsis = -1

// TotalPages returns the number of pages needed for count items, at least 1.
func TotalPages(count, size int) int {
	if size <= 0 || count <= 0 {
		return 1
	}
	return (count + size - 1) / size
}

// ClampPage moves page into [1, total].
func ClampPage(page, total int) int {
	if page > total {
		page = total
	}
	if page < 1 {
		page = 1
	}
	return page
}

// Paginate returns the items on page (clamped) along with the clamped page
// and the page count.
func Paginate[T any](items []T, page, size int) ([]T, int, int) {
	total := TotalPages(len(items), size)
	page = ClampPage(page, total)
	if size <= 0 {
		return items, page, total
	}
	start := (page - 1) * size
	if start > len(items) {
		start = len(items)
	}
	end := min(start+size, len(items))
	return items[start:end], page, total
}

// PageNumbers returns the page links to show around current: the first and
// last page, up to two pages on either side of current, and Ellipsis where
// pages are skipped.
func PageNumbers(current, total int) []int {
	const delta = 2

	nums := []int{1}
	if current-delta > 2 {
		nums = append(nums, Ellipsis)
	}
	for i := max(2, current-delta); i <= min(total-1, current+delta); i++ {
		nums = append(nums, i)
	}
	if current+delta < total-1 {
		nums = append(nums, Ellipsis)
	}
	if total > 1 {
		nums = append(nums, total)
	}
	return nums
}
