package cmd

import (
	"fmt"

	"github.com/jimyag/rbdmig/internal/rbdmig/entity"
	"github.com/jimyag/rbdmig/internal/rbdmig/service"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var mappingOpts struct {
	destinationVolumeID string
	rootDevice          string

	volumeID     string
	attachmentID string
	name         string
	description  string
	sizeGiB      uint64
	device       string
}

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Print a block device mapping for the migrate command",
}

var mappingEphemeralCmd = &cobra.Command{
	Use:   "ephemeral <server-id>",
	Short: "Mapping for the ephemeral root disk of a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, closeApp, err := openApp(true)
		if err != nil {
			return err
		}
		defer closeApp()

		ctx := cmd.Context()
		pool := cfg.Ceph.SourceEphemeralPool
		images, err := app.Client().List(ctx, pool)
		if err != nil {
			return err
		}
		m, found, err := app.Discovery().EphemeralDiskMapping(ctx, args[0], mappingOpts.rootDevice, images)
		if err != nil {
			return service.DumpOnFailure(ctx, cfg.ExceptionTraceFile, err)
		}
		if !found {
			return fmt.Errorf("server %s has no ephemeral disk %s in pool %s", args[0], service.EphemeralDiskImage(args[0]), pool)
		}
		m.Destination.VolumeID = mappingOpts.destinationVolumeID
		return printMappings(cmd, *m)
	},
}

var mappingVolumeCmd = &cobra.Command{
	Use:   "volume",
	Short: "Mapping for an attached cinder volume",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, closeApp, err := openApp(false)
		if err != nil {
			return err
		}
		defer closeApp()

		m := app.Discovery().VolumeMapping(service.VolumeAttachment{
			AttachmentID: mappingOpts.attachmentID,
			VolumeID:     mappingOpts.volumeID,
			VolumeName:   mappingOpts.name,
			Description:  mappingOpts.description,
			SizeGiB:      mappingOpts.sizeGiB,
			Device:       mappingOpts.device,
		}, mappingOpts.rootDevice)
		m.Destination.VolumeID = mappingOpts.destinationVolumeID
		return printMappings(cmd, m)
	},
}

func init() {
	for _, c := range []*cobra.Command{mappingEphemeralCmd, mappingVolumeCmd} {
		c.Flags().StringVar(&mappingOpts.destinationVolumeID, "destination-volume-id", "", "pre-created destination volume")
		c.Flags().StringVar(&mappingOpts.rootDevice, "root-device", service.DefaultRootDevice, "root device of the server")
		_ = c.MarkFlagRequired("destination-volume-id")
	}

	flags := mappingVolumeCmd.Flags()
	flags.StringVar(&mappingOpts.volumeID, "volume-id", "", "source volume id")
	flags.StringVar(&mappingOpts.attachmentID, "attachment-id", "", "source volume attachment id")
	flags.StringVar(&mappingOpts.name, "name", "", "source volume name")
	flags.StringVar(&mappingOpts.description, "description", "", "source volume description")
	flags.Uint64Var(&mappingOpts.sizeGiB, "size", 0, "source volume size in GiB")
	flags.StringVar(&mappingOpts.device, "device", "", "device the volume is attached as, e.g. /dev/vdb")
	_ = mappingVolumeCmd.MarkFlagRequired("volume-id")
	_ = mappingVolumeCmd.MarkFlagRequired("device")

	mappingCmd.AddCommand(mappingEphemeralCmd, mappingVolumeCmd)
	rootCmd.AddCommand(mappingCmd)
}

func printMappings(cmd *cobra.Command, mappings ...entity.BlockDeviceMapping) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(mappingsFile{Mappings: mappings}); err != nil {
		return fmt.Errorf("encode mappings: %w", err)
	}
	return enc.Close()
}
