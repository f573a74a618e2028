package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/chihaya/bdecode/bencode"
	"github.com/chihaya/bdecode/bittorrent"
	"github.com/chihaya/bdecode/pkg/log"
)

// readInput reads the file named by the first argument, or stdin when there
// is none or it is "-".
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}

	buf, err := os.ReadFile(args[0])
	if err != nil {
		return nil, errors.Wrap(err, "failed to read input")
	}
	return buf, nil
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump [file]",
		Short: "Decode a bencoded document and print it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := decoderFlags(cmd)
			if err != nil {
				return err
			}

			buf, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			asJSON, err := cmd.Flags().GetBool("output-json")
			if err != nil {
				return err
			}

			all, err := cmd.Flags().GetBool("stream")
			if err != nil {
				return err
			}

			if !all {
				v, err := bencode.DecodeConfig(buf, cfg)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), v, asJSON)
			}

			dec := bencode.NewDecoder(buf, cfg)
			for dec.More() {
				v, err := dec.Decode()
				if err != nil {
					return err
				}
				log.Debug("decoded value", log.Fields{"kind": bencode.KindOf(v), "offset": dec.Offset()})
				if err := render(cmd.OutOrStdout(), v, asJSON); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("output-json", false, "print JSON instead of YAML")
	cmd.Flags().Bool("stream", false, "decode every value in the input one after another")
	return cmd
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info [file]",
		Short: "Print the summary of a .torrent file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := decoderFlags(cmd)
			if err != nil {
				return err
			}

			buf, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			mi, err := bittorrent.ParseMetainfoConfig(buf, cfg)
			if err != nil {
				return err
			}

			magnet, err := cmd.Flags().GetBool("magnet")
			if err != nil {
				return err
			}
			if magnet {
				_, err = io.WriteString(cmd.OutOrStdout(), mi.Magnet()+"\n")
				return err
			}

			asJSON, err := cmd.Flags().GetBool("output-json")
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), infoView(mi), asJSON)
		},
	}

	cmd.Flags().Bool("output-json", false, "print JSON instead of YAML")
	cmd.Flags().Bool("magnet", false, "print only the magnet link")
	return cmd
}

// infoView adds the yaml names that Summary only declares for JSON.
func infoView(mi *bittorrent.Metainfo) interface{} {
	s := mi.Summary()
	return struct {
		InfoHash     string            `json:"info_hash" yaml:"info_hash"`
		InfoHashV2   string            `json:"info_hash_v2" yaml:"info_hash_v2"`
		Name         string            `json:"name" yaml:"name"`
		Comment      string            `json:"comment,omitempty" yaml:"comment,omitempty"`
		CreatedBy    string            `json:"created_by,omitempty" yaml:"created_by,omitempty"`
		CreationDate int64             `json:"creation_date,omitempty" yaml:"creation_date,omitempty"`
		Length       int64             `json:"length" yaml:"length"`
		PieceLength  int64             `json:"piece_length" yaml:"piece_length"`
		NumPieces    int               `json:"num_pieces" yaml:"num_pieces"`
		Files        []bittorrent.File `json:"files,omitempty" yaml:"files,omitempty"`
		Private      bool              `json:"private" yaml:"private"`
		Trackers     []string          `json:"trackers" yaml:"trackers"`
		Magnet       string            `json:"magnet" yaml:"magnet"`
	}{
		InfoHash:     s.InfoHash.String(),
		InfoHashV2:   s.InfoHashV2.String(),
		Name:         s.Name,
		Comment:      s.Comment,
		CreatedBy:    s.CreatedBy,
		CreationDate: s.CreationDate,
		Length:       s.Length,
		PieceLength:  s.PieceLength,
		NumPieces:    s.NumPieces,
		Files:        s.Files,
		Private:      s.Private,
		Trackers:     s.Trackers,
		Magnet:       mi.Magnet(),
	}
}

func newAnnounceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "announce [file]",
		Short: "Print a tracker announce or scrape response",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := decoderFlags(cmd)
			if err != nil {
				return err
			}

			buf, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			scrape, err := cmd.Flags().GetBool("scrape")
			if err != nil {
				return err
			}

			if scrape {
				scrapes, err := bittorrent.ParseScrapeResponse(buf, cfg)
				if err != nil {
					return err
				}
				for _, s := range scrapes {
					log.Info("scrape", log.Fields{
						"infoHash":   s.InfoHash,
						"complete":   s.Complete,
						"incomplete": s.Incomplete,
						"downloaded": s.Snatches,
					})
				}
				return nil
			}

			resp, err := bittorrent.ParseAnnounceResponse(buf, cfg)
			if err != nil {
				return err
			}

			log.Info("announce response", resp)
			for _, p := range append(resp.IPv4Peers, resp.IPv6Peers...) {
				if _, err := io.WriteString(cmd.OutOrStdout(), p.String()+"\n"); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("scrape", false, "parse a scrape response instead")
	return cmd
}
