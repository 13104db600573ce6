package classifier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Keshav04042001/mindmeld/pkg/utils"
)

// ErrUntrained is returned by Predict before any successful fit or load.
// It is distinct from a legitimate empty prediction.
var ErrUntrained = errors.New("role classifier must be fit or loaded before predicting")

// AnnotationError reports training queries whose eligible entities are
// missing a role annotation. It always surfaces to the caller; training
// never proceeds past one.
type AnnotationError struct {
	Queries []string
}

func (e *AnnotationError) Error() string {
	return fmt.Sprintf("invalid entity annotation, expecting role in %d query(ies): %s",
		len(e.Queries), utils.Truncate(strings.Join(e.Queries, "; "), 400))
}
