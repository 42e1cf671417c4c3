package route

import (
	"fmt"
	"sort"
	"time"
)

// Stop は路線上の停留所を表す
// OrderIndex は路線の進行方向に沿って厳密に増加する
type Stop struct {
	ID         string
	Name       string
	OrderIndex int
}

// Segment は隣接する2つの停留所の間の最小区間を表す
// 区間は排他制御の最小単位となる
type Segment struct {
	ID         string
	FromStopID string
	ToStopID   string
	Position   int // 出発側停留所のインデックス
}

// Route は路線エンティティを表す
// 運行日ごとの在庫公開後、停留所列は不変として扱う
type Route struct {
	ID        string
	Name      string
	Stops     []Stop
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int // 楽観的ロック用
}

// NewRoute は新しい路線を作成する
// 停留所は OrderIndex 順にソートして保持する
func NewRoute(name string, stops []Stop) *Route {
	sorted := make([]Stop, len(stops))
	copy(sorted, stops)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].OrderIndex < sorted[j].OrderIndex
	})
	now := time.Now()
	return &Route{
		Name:      name,
		Stops:     sorted,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   0,
	}
}

// SegmentID は区間の識別子を生成する
// 同じ停留所対からは常に同じ識別子が得られる
func SegmentID(fromStopID, toStopID string) string {
	return fmt.Sprintf("SEG_%s_%s", fromStopID, toStopID)
}

// Segments は路線を構成する全区間を進行方向順に返す
func (r *Route) Segments() []Segment {
	if len(r.Stops) < 2 {
		return nil
	}
	segments := make([]Segment, 0, len(r.Stops)-1)
	for i := 0; i < len(r.Stops)-1; i++ {
		from, to := r.Stops[i], r.Stops[i+1]
		segments = append(segments, Segment{
			ID:         SegmentID(from.ID, to.ID),
			FromStopID: from.ID,
			ToStopID:   to.ID,
			Position:   i,
		})
	}
	return segments
}

// ResolveSegments は乗車・降車停留所の組から占有する区間列を解決する
// 結果は進行方向順で、乗車停留所から降車停留所の直前までの区間を含む
// 純粋関数であり、同じ入力からは常に同じ区間列が得られる
func (r *Route) ResolveSegments(boardingStopID, dropOffStopID string) ([]Segment, error) {
	boardingIdx, ok := r.stopIndex(boardingStopID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStop, boardingStopID)
	}
	dropOffIdx, ok := r.stopIndex(dropOffStopID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStop, dropOffStopID)
	}
	if boardingIdx >= dropOffIdx {
		return nil, ErrInvalidInterval
	}
	return r.Segments()[boardingIdx:dropOffIdx], nil
}

// FindStop は停留所IDから停留所を返す
func (r *Route) FindStop(stopID string) (Stop, bool) {
	idx, ok := r.stopIndex(stopID)
	if !ok {
		return Stop{}, false
	}
	return r.Stops[idx], true
}

func (r *Route) stopIndex(stopID string) (int, bool) {
	for i, s := range r.Stops {
		if s.ID == stopID {
			return i, true
		}
	}
	return 0, false
}

// Validate は路線の検証を行う
func (r *Route) Validate() error {
	if r.Name == "" {
		return ErrRouteNameRequired
	}
	if len(r.Stops) < 2 {
		return ErrNotEnoughStops
	}
	seen := make(map[string]struct{}, len(r.Stops))
	for i, s := range r.Stops {
		if s.ID == "" {
			return ErrStopIDRequired
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateStop, s.ID)
		}
		seen[s.ID] = struct{}{}
		if i > 0 && r.Stops[i-1].OrderIndex >= s.OrderIndex {
			return ErrStopOrderNotIncreasing
		}
	}
	return nil
}
