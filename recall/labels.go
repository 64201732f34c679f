package recall

import (
	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/pkg/utils"
)

func labelRecallSource(src core.Source) (string, utils.Label) {
	return utils.LabelRecallSource, utils.Label{Value: string(src), Source: "recall"}
}

func labelExpansion(outcome string) (string, utils.Label) {
	return utils.LabelExpansion, utils.Label{Value: outcome, Source: "recall.expansion"}
}
