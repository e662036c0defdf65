package catalog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/crux/internal/domain/model"
)

type fixture struct {
	Competitions []struct {
		ID     int64  `yaml:"id"`
		Name   string `yaml:"name"`
		Rounds []struct {
			ID          int64  `yaml:"id"`
			Name        string `yaml:"name"`
			Type        string `yaml:"type"`
			RankingType string `yaml:"ranking_type"`
			MaxTries    int    `yaml:"max_tries"`
			Groups      []struct {
				ID       int64           `yaml:"id"`
				Name     string          `yaml:"name"`
				State    string          `yaml:"state"`
				Boulders []model.Boulder `yaml:"boulders"`
				Climbers []model.Climber `yaml:"climbers"`
			} `yaml:"groups"`
		} `yaml:"rounds"`
	} `yaml:"competitions"`
}

// LoadFile builds a catalog from a YAML fixture on disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog fixture: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load builds a catalog from a YAML fixture:
//
//	competitions:
//	  - id: 1
//	    name: Open
//	    rounds:
//	      - id: 10
//	        type: QUALIFIER
//	        ranking_type: CIRCUIT
//	        groups:
//	          - id: 100
//	            state: ONGOING
//	            boulders: [{id: 1000, name: B1}]
//	            climbers: [{id: 1, first_name: Ada}]
func Load(r io.Reader) (*Catalog, error) {
	var fx fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog fixture: %w", err)
	}

	c := New()
	for _, comp := range fx.Competitions {
		if err := c.AddCompetition(model.Competition{ID: comp.ID, Name: comp.Name}); err != nil {
			return nil, err
		}
		for _, rd := range comp.Rounds {
			format, err := model.ParseFormat(rd.RankingType)
			if err != nil {
				return nil, fmt.Errorf("round %d: %w", rd.ID, err)
			}
			rt := model.RoundType(strings.ToUpper(rd.Type))
			switch rt {
			case "":
				rt = model.RoundQualifier
			case model.RoundQualifier, model.RoundSemiFinal, model.RoundFinal:
			default:
				return nil, fmt.Errorf("round %d type %q: %w", rd.ID, rd.Type, model.ErrInvalidInput)
			}
			round := model.Round{
				ID:            rd.ID,
				CompetitionID: comp.ID,
				Name:          rd.Name,
				Type:          rt,
				Format:        format,
				MaxTries:      rd.MaxTries,
			}
			if err := c.AddRound(round); err != nil {
				return nil, err
			}
			for _, g := range rd.Groups {
				state := model.GroupPending
				if g.State != "" {
					if state, err = model.ParseGroupState(g.State); err != nil {
						return nil, fmt.Errorf("group %d: %w", g.ID, err)
					}
				}
				err := c.AddGroup(model.Group{
					ID:       g.ID,
					RoundID:  rd.ID,
					Name:     g.Name,
					State:    state,
					Boulders: g.Boulders,
					Climbers: g.Climbers,
				})
				if err != nil {
					return nil, err
				}
			}
		}
	}
	return c, nil
}
